package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"hearth/internal/domain"
)

// LevelDB is a domain.KeyValueStore backed by an embedded LevelDB
// database. Writes are synced to disk before Put returns: session state
// must be durable before a derived message key is handed out.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if needed) the database at dir.
func OpenLevelDB(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Get returns the value for key, with ok=false when absent.
func (l *LevelDB) Get(key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put atomically stores value under key with a synced write.
func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

// Delete removes key. Deleting an absent key is not an error.
func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, &opt.WriteOptions{Sync: true})
}

// Close releases the database.
func (l *LevelDB) Close() error { return l.db.Close() }

var _ domain.KeyValueStore = (*LevelDB)(nil)
