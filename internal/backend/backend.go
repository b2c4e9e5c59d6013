// Package backend selects and constructs the persistence layer from
// configuration. All backends satisfy store.Store so the rest of the
// application never knows which one it is talking to.
package backend

import (
	"context"
	"fmt"

	"github.com/carlinf/finance-tracker/internal/config"
	"github.com/carlinf/finance-tracker/internal/store"
)

// Type identifies a persistence backend.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
	MongoBackend  Type = "mongo"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func(ctx context.Context) error

// Result contains the constructed store and its cleanup function.
type Result struct {
	Store   store.Store
	Cleanup CleanupFunc
}

// Options holds everything a backend needs to come up.
type Options struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Mongo specific
	MongoURI    string
	MongoDBName string
}

// OptionsFromConfig converts the application config to backend options.
func OptionsFromConfig(appConfig *config.Config) (Options, error) {
	if appConfig == nil {
		return Options{}, fmt.Errorf("app config is nil")
	}

	backendType := Type(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Options{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Options{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		MongoURI:     appConfig.MongoURI,
		MongoDBName:  appConfig.MongoDBName,
	}, nil
}
