package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/hutchhq/nodeup/pkg/types"
)

var (
	// Bucket names
	bucketProvision = []byte("provision")

	// Keys inside the provision bucket
	keyPhase        = []byte("node_state")
	keyClusterSpec  = []byte("cluster_spec")
	keyNodeIdentity = []byte("node_identity")
)

// BoltStore implements Store using BoltDB. BoltDB fsyncs on commit, which
// gives the durability the phase flag requires across a reboot.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the provisioning database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "nodeup.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketProvision); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketProvision, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Phase returns the persisted provisioning phase. A missing key means the
// machine is unconfigured.
func (s *BoltStore) Phase() (types.Phase, error) {
	var phase types.Phase
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProvision).Get(keyPhase)
		phase = types.Phase(data)
		return nil
	})
	return phase, err
}

// SetPhase advances the persisted phase. Writing an earlier phase than the
// one already recorded fails with ErrPhaseRegression.
func (s *BoltStore) SetPhase(p types.Phase) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProvision)
		current := types.Phase(b.Get(keyPhase))
		if p.Rank() < current.Rank() {
			return fmt.Errorf("%w: %q -> %q", ErrPhaseRegression, current, p)
		}
		return b.Put(keyPhase, []byte(p))
	})
}

// SetClusterSpec persists the resolved cluster parameters.
func (s *BoltStore) SetClusterSpec(spec *types.ClusterSpec) error {
	return s.putJSON(keyClusterSpec, spec)
}

// ClusterSpec returns the persisted cluster parameters.
func (s *BoltStore) ClusterSpec() (*types.ClusterSpec, error) {
	var spec types.ClusterSpec
	if err := s.getJSON(keyClusterSpec, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// SetNodeIdentity persists the resolved node identity.
func (s *BoltStore) SetNodeIdentity(id *types.NodeIdentity) error {
	return s.putJSON(keyNodeIdentity, id)
}

// NodeIdentity returns the persisted node identity.
func (s *BoltStore) NodeIdentity() (*types.NodeIdentity, error) {
	var id types.NodeIdentity
	if err := s.getJSON(keyNodeIdentity, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *BoltStore) putJSON(key []byte, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketProvision).Put(key, data)
	})
}

func (s *BoltStore) getJSON(key []byte, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProvision).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return json.Unmarshal(data, v)
	})
}
