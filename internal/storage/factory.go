package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/lugondev/go-zion/internal/config"
)

type DatabaseType string

const (
	DatabaseTypeMongoDB  DatabaseType = "mongodb"
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeMemory   DatabaseType = "memory"
)

// Opener opens a backend from the database section of the configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Repository, error)

var (
	openersMu sync.RWMutex
	openers   = map[DatabaseType]Opener{
		DatabaseTypeMemory: func(context.Context, *config.DatabaseConfig) (Repository, error) {
			return NewMemoryRepository(), nil
		},
	}
)

// Register makes a backend available to ConnectionManager. Backend packages
// call it from init, so importing one for side effects is enough to enable it.
func Register(t DatabaseType, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[t] = open
}

// Open opens a backend of type t.
func Open(ctx context.Context, t DatabaseType, cfg *config.DatabaseConfig) (Repository, error) {
	openersMu.RLock()
	open, ok := openers[t]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s backend not registered: import _ \"github.com/lugondev/go-zion/internal/storage/%s\"", t, t)
	}
	return open(ctx, cfg)
}
