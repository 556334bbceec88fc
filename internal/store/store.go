// internal/store/store.go
//
// Persistence interface for game records plus backend selection.
// Implementations:
//   - file   (one JSON file per chat key, default)
//   - sqlite (game_states table, WAL)
//   - redis  (game:<key> values + games key set)
//   - mongo  (game_states collection)
//   - memory (tests and throwaway runs)
//
// No cross-process locking: exactly one bot process owns the store.

package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load for unknown keys.
var ErrNotFound = errors.New("store: record not found")

// Store persists one Record per chat key.
type Store interface {
	// Save creates or replaces the record for key.
	Save(ctx context.Context, key string, rec *Record) error

	// Load returns the record for key or ErrNotFound.
	Load(ctx context.Context, key string) (*Record, error)

	// Delete removes the record; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every stored chat key.
	Keys(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Dir        string // file
	SQLitePath string // sqlite
	RedisURI   string // redis
	MongoURI   string // mongo
	MongoDB    string // mongo
}

// Open constructs the configured backend. Errors here are configuration
// errors and should stop the process.
func Open(ctx context.Context, opt Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opt.Backend {
	case "", BackendFile:
		s, err = NewFileStore(opt.Dir)
	case BackendSQLite:
		s, err = OpenSQLite(opt.SQLitePath)
	case BackendRedis:
		s, err = OpenRedis(ctx, opt.RedisURI)
	case BackendMongo:
		s, err = OpenMongo(ctx, opt.MongoURI, opt.MongoDB)
	case BackendMemory:
		s = NewMemoryStore()
	default:
		err = fmt.Errorf("store: unknown backend %q", opt.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
