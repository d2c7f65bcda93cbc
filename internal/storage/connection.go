package storage

import (
	"context"
	"fmt"

	"github.com/lugondev/go-zion/internal/config"
)

// ConnectionManager opens the configured backend once and hands out the
// same Repository afterwards. A disabled database falls back to an
// in-memory repository.
type ConnectionManager struct {
	config     *config.DatabaseConfig
	repository Repository
}

func NewConnectionManager(cfg *config.DatabaseConfig) *ConnectionManager {
	return &ConnectionManager{
		config: cfg,
	}
}

// Type returns the backend Connect opens.
func (cm *ConnectionManager) Type() DatabaseType {
	if !cm.config.Enabled {
		return DatabaseTypeMemory
	}
	return DatabaseType(cm.config.Type)
}

func (cm *ConnectionManager) Connect(ctx context.Context) (Repository, error) {
	if cm.repository != nil {
		return cm.repository, nil
	}

	repo, err := Open(ctx, cm.Type(), cm.config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cm.repository = repo
	return repo, nil
}

func (cm *ConnectionManager) GetRepository() (Repository, error) {
	if cm.repository == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return cm.repository, nil
}

func (cm *ConnectionManager) Close() error {
	if cm.repository != nil {
		return cm.repository.Close()
	}
	return nil
}
