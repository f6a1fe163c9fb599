package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// Manager bundles the Badger-backed storage implementations behind one
// connection.
type Manager struct {
	db     *BadgerDB
	job    interfaces.JobStorage
	batch  interfaces.BatchStorage
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		job:    NewJobStorage(db, logger),
		batch:  NewBatchStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// DB returns the underlying connection (used by the continuation queue).
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// JobStorage returns the job store
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// BatchStorage returns the result batch store
func (m *Manager) BatchStorage() interfaces.BatchStorage {
	return m.batch
}

// KVStorage returns the key/value store
func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
