package clusterstore

import (
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/samuel/go-zookeeper/zk"
)

// ZKStore persists the snapshot to a single znode, following the same
// create-if-absent / versioned-set discipline the teacher's rpc package uses
// for framework-id persistence (rpc.PersistFrameworkID, rpc.ClearZKState).
type ZKStore struct {
	Path string
	conn *zk.Conn
}

// NewZKStore connects to the given ZooKeeper ensemble and returns a store
// that reads/writes the snapshot at path.
func NewZKStore(servers []string, path string, sessionTimeout time.Duration) (*ZKStore, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("clusterstore: connect to zookeeper: %w", err)
	}
	return &ZKStore{Path: path, conn: conn}, nil
}

// Close releases the underlying ZooKeeper session.
func (z *ZKStore) Close() {
	z.conn.Close()
}

// Save snappy-compresses data and writes it to the configured znode,
// creating it on first use and doing a versioned Set thereafter so two
// scheduler instances can never silently clobber each other's writes.
func (z *ZKStore) Save(data []byte) error {
	compressed := snappy.Encode(nil, data)

	_, stat, err := z.conn.Get(z.Path)
	if err == zk.ErrNoNode {
		_, createErr := z.conn.Create(z.Path, compressed, 0, zk.WorldACL(zk.PermAll))
		if createErr != nil && createErr != zk.ErrNodeExists {
			return fmt.Errorf("clusterstore: create znode: %w", createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("clusterstore: stat znode: %w", err)
	}
	if _, err := z.conn.Set(z.Path, compressed, stat.Version); err != nil {
		return fmt.Errorf("clusterstore: set znode: %w", err)
	}
	return nil
}

// Load reads and decompresses the snapshot znode, or ErrNotFound if absent.
func (z *ZKStore) Load() ([]byte, error) {
	raw, _, err := z.conn.Get(z.Path)
	if err == zk.ErrNoNode {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clusterstore: get znode: %w", err)
	}
	data, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, fmt.Errorf("clusterstore: decompress snapshot: %w", err)
	}
	return data, nil
}
