// Package checkpoint persists and restores trained Network weights, keyed
// by run name, in a single bbolt database file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"slidenet/internal/slide"
)

const networksBucket = "networks"

// Snapshot is the full serializable state of a trained Network: its layer
// configuration plus every neuron's current weights and bias. Adam moments
// are intentionally not persisted; restoring a snapshot restarts every
// Param's moving averages at zero.
type Snapshot struct {
	InputSize    int                    `json:"input_size"`
	BatchSize    int                    `json:"batch_size"`
	LearningRate float32                `json:"learning_rate"`
	Layers       []slide.LayerConfig    `json:"layers"`
	Weights      []slide.WeightSnapshot `json:"weights"`
	SavedAt      time.Time              `json:"saved_at"`
}

// FromNetwork captures n's current configuration and weights into a Snapshot.
func FromNetwork(n *slide.Network, savedAt time.Time) Snapshot {
	return Snapshot{
		InputSize:    n.InputSize(),
		BatchSize:    n.BatchSize(),
		LearningRate: n.LearningRate(),
		Layers:       n.Configs(),
		Weights:      n.Export(),
		SavedAt:      savedAt,
	}
}

// Restore builds a fresh Network from snap's configuration and loads its
// saved weights into it.
func Restore(snap Snapshot) (*slide.Network, error) {
	n, err := slide.NewNetwork(snap.BatchSize, snap.LearningRate, snap.InputSize, snap.Layers)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: rebuild network: %w", err)
	}
	if err := n.Import(snap.Weights); err != nil {
		return nil, fmt.Errorf("checkpoint: restore weights: %w", err)
	}
	return n, nil
}

// Open opens (creating if absent) the bbolt database at path and ensures the
// "networks" bucket exists.
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(networksBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create bucket: %w", err)
	}
	return db, nil
}

// Save encodes snap as JSON and stores it under name in db's "networks"
// bucket, overwriting any previous snapshot with the same name.
func Save(db *bbolt.DB, name string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal snapshot %q: %w", name, err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(networksBucket))
		return b.Put([]byte(name), data)
	})
}

// Load retrieves and decodes the snapshot stored under name.
func Load(db *bbolt.DB, name string) (Snapshot, error) {
	var snap Snapshot
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(networksBucket))
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("checkpoint: no snapshot named %q", name)
		}
		return json.Unmarshal(data, &snap)
	})
	return snap, err
}

// List returns the names of every snapshot currently stored in db.
func List(db *bbolt.DB) ([]string, error) {
	var names []string
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(networksBucket))
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Delete removes the snapshot stored under name, if any.
func Delete(db *bbolt.DB, name string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(networksBucket))
		return b.Delete([]byte(name))
	})
}
