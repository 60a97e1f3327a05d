// Package clusterstore provides pluggable durable backends for cluster
// snapshots: a local atomic file store and an optional ZooKeeper store.
package clusterstore

import "errors"

// ErrNotFound is returned by Load when no snapshot has ever been written.
var ErrNotFound = errors.New("clusterstore: snapshot not found")

// Store persists and retrieves an opaque cluster snapshot.
type Store interface {
	Save(data []byte) error
	Load() ([]byte, error)
}
