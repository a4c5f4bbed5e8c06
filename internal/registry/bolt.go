package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNodes = []byte("nodes")
	bucketMeta  = []byte("meta")

	keySchemaVersion = []byte("schema_version")
)

// schemaVersion is the current on-disk record layout.
//
//	1: name, ip, username, password, type
//	2: adds is_master, renames ip/password/type to address/secret/kind, adds key_path
const schemaVersion = 2

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens (or creates) the registry database at path and migrates it
// to the current schema.
func OpenBolt(ctx context.Context, path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	s := &BoltStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) migrate(ctx context.Context) error {
	log := logr.FromContextOrDiscard(ctx)

	return s.db.Update(func(tx *bolt.Tx) error {
		nodes, err := tx.CreateBucketIfNotExists(bucketNodes)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketNodes, err)
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}

		current := 1
		if v := meta.Get(keySchemaVersion); v != nil {
			current, err = strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("corrupt schema version %q: %w", v, err)
			}
		} else if nodes.Stats().KeyN == 0 {
			// Fresh database.
			current = schemaVersion
		}

		if current > schemaVersion {
			return fmt.Errorf("registry schema version %d is newer than supported version %d", current, schemaVersion)
		}

		if current < 2 {
			n, err := migrateV1(nodes)
			if err != nil {
				return err
			}
			log.Info("Migrated registry records", "from", current, "to", schemaVersion, "records", n)
		}

		return meta.Put(keySchemaVersion, []byte(strconv.Itoa(schemaVersion)))
	})
}

// legacyRecord is the version 1 layout. IsMaster is a pointer so a missing
// field reads as false rather than failing.
type legacyRecord struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Username string `json:"username"`
	Password string `json:"password"`
	Type     string `json:"type"`
	IsMaster *bool  `json:"is_master"`
}

func migrateV1(b *bolt.Bucket) (int, error) {
	updated := map[string][]byte{}

	err := b.ForEach(func(k, v []byte) error {
		var old legacyRecord
		if err := json.Unmarshal(v, &old); err != nil {
			return fmt.Errorf("failed to decode legacy record %s: %w", k, err)
		}

		kind, err := ParseKind(old.Type)
		if err != nil {
			kind = KindEdge
		}
		node := Node{
			Name:     old.Name,
			Address:  old.IP,
			Username: old.Username,
			Secret:   old.Password,
			Kind:     kind,
			IsMaster: old.IsMaster != nil && *old.IsMaster,
		}
		if node.Name == "" {
			node.Name = string(k)
		}

		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		updated[string(k)] = data
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Writes are deferred: bbolt forbids mutating a bucket inside ForEach.
	for k, data := range updated {
		if err := b.Put([]byte(k), data); err != nil {
			return 0, fmt.Errorf("failed to rewrite record %s: %w", k, err)
		}
	}
	return len(updated), nil
}

// Add validates and upserts node. Flagging a node as master clears the
// previous master in the same transaction.
func (s *BoltStore) Add(_ context.Context, node Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	kind, _ := ParseKind(string(node.Kind))
	node.Kind = kind

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)

		if node.IsMaster {
			var demoted []Node
			err := b.ForEach(func(k, v []byte) error {
				if string(k) == node.Name {
					return nil
				}
				var n Node
				if err := json.Unmarshal(v, &n); err != nil {
					return fmt.Errorf("failed to decode node %s: %w", k, err)
				}
				if n.IsMaster {
					n.IsMaster = false
					demoted = append(demoted, n)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, n := range demoted {
				if err := putNode(b, n); err != nil {
					return err
				}
			}
		}

		return putNode(b, node)
	})
}

func putNode(b *bolt.Bucket, node Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", node.Name, err)
	}
	return b.Put([]byte(node.Name), data)
}

// Get returns the named node.
func (s *BoltStore) Get(_ context.Context, name string) (Node, error) {
	var node Node
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return json.Unmarshal(data, &node)
	})
	return node, err
}

// List returns every node, ordered by name.
func (s *BoltStore) List(_ context.Context) ([]Node, error) {
	var nodes []Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node Node
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("failed to decode node %s: %w", k, err)
			}
			nodes = append(nodes, node)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// Remove deletes the named node unless it is the current master.
func (s *BoltStore) Remove(_ context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		var node Node
		if err := json.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to decode node %s: %w", name, err)
		}
		if node.IsMaster {
			return fmt.Errorf("%w: %s", ErrMasterProtected, name)
		}
		return b.Delete([]byte(name))
	})
}

// CurrentMaster returns the node flagged as master.
func (s *BoltStore) CurrentMaster(_ context.Context) (Node, bool, error) {
	var (
		master Node
		found  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			if found {
				return nil
			}
			var node Node
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("failed to decode node %s: %w", k, err)
			}
			if node.IsMaster {
				master, found = node, true
			}
			return nil
		})
	})
	return master, found, err
}

// Snapshot writes a consistent copy of the database to w.
func (s *BoltStore) Snapshot(w io.Writer) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	return n, err
}
