// Package artifactserver hosts the executor binary and the Kafka
// distribution archive over HTTP so newly launched executors can fetch them
// by URI, the same way the teacher's ServeExecutorArtifact does for its own
// executor binary.
package artifactserver

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	log "github.com/golang/glog"
)

// Serve registers path under /<kind>/<basename> on the default mux and
// starts listening on port (all interfaces) in the background, returning
// the URI clients should use to fetch it; address is used only to build
// that URI. kind is "executor" or "kafka", matching
// the launch contract the broker executor fetches its artifacts from.
func Serve(kind, path, address string, port int) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	pathSplit := strings.Split(path, "/")
	base := path
	if len(pathSplit) > 0 {
		base = pathSplit[len(pathSplit)-1]
	}
	pattern := "/" + kind + "/" + base

	http.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		log.Infof("artifactserver: serving %s to %s", pattern, r.RemoteAddr)
		http.ServeFile(w, r, path)
	})

	hostPort := fmt.Sprintf(":%d", port)
	go func() {
		log.Errorf("artifactserver: %v", http.ListenAndServe(hostPort, nil))
	}()

	return fmt.Sprintf("http://%s:%d%s", address, port, pattern), nil
}
