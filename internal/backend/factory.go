package backend

import (
	"context"
	"fmt"

	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/store/memory"
	"github.com/carlinf/finance-tracker/internal/store/mongo"
	"github.com/carlinf/finance-tracker/internal/store/sqlite"
)

// Factory creates stores based on backend options.
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentStore)}
}

// Create constructs the store described by opts.
func (f *Factory) Create(ctx context.Context, opts Options) (*Result, error) {
	if !opts.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", opts.Type)
	}

	switch opts.Type {
	case MemoryBackend:
		return f.createMemory()
	case SQLiteBackend:
		return f.createSQLite(opts)
	case MongoBackend:
		return f.createMongo(opts)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", opts.Type)
	}
}

func (f *Factory) createMemory() (*Result, error) {
	s := memory.New(memory.Config{})

	f.logger.Info("Initialized in-memory backend", log.FieldBackend, MemoryBackend.String())

	return &Result{
		Store:   s,
		Cleanup: s.Close,
	}, nil
}

func (f *Factory) createSQLite(opts Options) (*Result, error) {
	s, err := sqlite.New(sqlite.Config{Path: opts.SQLiteDBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		log.FieldBackend, SQLiteBackend.String(),
		"db_path", opts.SQLiteDBPath)

	return &Result{
		Store:   s,
		Cleanup: s.Close,
	}, nil
}

func (f *Factory) createMongo(opts Options) (*Result, error) {
	s, err := mongo.New(mongo.Config{
		URI:      opts.MongoURI,
		Database: opts.MongoDBName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Mongo backend: %w", err)
	}

	f.logger.Info("Initialized Mongo backend",
		log.FieldBackend, MongoBackend.String(),
		"database", opts.MongoDBName)

	return &Result{
		Store:   s,
		Cleanup: s.Close,
	}, nil
}
