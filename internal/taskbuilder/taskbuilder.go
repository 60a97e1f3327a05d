// Package taskbuilder serializes a broker and an accepted offer into a
// Mesos TaskInfo launch descriptor.
package taskbuilder

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/gogo/protobuf/proto"
	mesos "github.com/mesos/mesos-go/mesosproto"
	util "github.com/mesos/mesos-go/mesosutil"

	"github.com/mesosphere/kafka-mesos/internal/broker"
)

// Config carries the pieces of the launch descriptor that come from the
// scheduler's own configuration rather than from the broker or the offer.
type Config struct {
	ExecutorJarURI   string
	DistributionURI  string
	ZookeeperConnect string
	Debug            bool
}

// Build constructs the TaskInfo to launch b on the accepted offer o at port,
// returning the freshly minted task id alongside it for the caller to track.
func Build(b *broker.Broker, o broker.Offer, port uint64, cfg Config) (*mesos.TaskInfo, string, error) {
	taskID := b.NextTaskID()
	executorID := b.NextExecutorID()

	execCmd := fmt.Sprintf("$MESOS_SANDBOX/kafka-executor -Xmx%dm", b.Heap)
	if cfg.Debug {
		execCmd += " -debug"
	}

	executor := &mesos.ExecutorInfo{
		ExecutorId: util.NewExecutorID(executorID),
		Name:       proto.String("kafka"),
		Source:     proto.String("kafka-mesos"),
		Command: &mesos.CommandInfo{
			Value: proto.String(execCmd),
			Uris: []*mesos.CommandInfo_URI{
				{Value: proto.String(cfg.ExecutorJarURI)},
				{Value: proto.String(cfg.DistributionURI)},
			},
		},
	}

	task := &mesos.TaskInfo{
		Name:     proto.String("broker-" + b.ID),
		TaskId:   &mesos.TaskID{Value: proto.String(taskID)},
		SlaveId:  &mesos.SlaveID{Value: proto.String(o.SlaveID)},
		Executor: executor,
		Data:     buildProperties(b, port, cfg.ZookeeperConnect),
		Resources: []*mesos.Resource{
			util.NewScalarResource("cpus", b.CPUs),
			util.NewScalarResource("mem", float64(b.Mem)),
			util.NewRangesResource("ports", []*mesos.Value_Range{
				util.NewValueRange(port, port),
			}),
		},
	}
	return task, taskID, nil
}

// buildProperties merges the broker's option map with the injected
// broker.id / port / zookeeper.connect properties (which always win over
// optionMap) and a defaulted log.dirs (which only applies if optionMap
// doesn't already set one), serialized as a sorted, line-oriented
// key=value text block.
func buildProperties(b *broker.Broker, port uint64, zkConnect string) []byte {
	merged := make(map[string]string, len(b.OptionMap)+4)
	for k, v := range b.OptionMap {
		merged[k] = v
	}
	if _, ok := merged["log.dirs"]; !ok {
		merged["log.dirs"] = "kafka-logs"
	}
	merged["broker.id"] = b.ID
	merged["port"] = fmt.Sprintf("%d", port)
	merged["zookeeper.connect"] = zkConnect

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("# kafka-mesos broker properties\n")
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%s\n", k, merged[k])
	}
	return buf.Bytes()
}
