package manifest

import (
	"fmt"
	"path/filepath"
)

// Store kinds accepted by Open.
const (
	KindJSON     = "json"
	KindYAML     = "yaml"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindS3       = "s3"
)

// StoreConfig selects and configures a Store.
type StoreConfig struct {
	Kind string
	// Path is the file or SQLite database location.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
	S3  ObjectStoreConfig
}

// Kinds lists the supported store kinds.
func Kinds() []string {
	return []string{KindJSON, KindYAML, KindSQLite, KindPostgres, KindS3}
}

// Open creates the store described by cfg.
func Open(cfg StoreConfig) (Store, error) {
	switch cfg.Kind {
	case "", KindJSON:
		return NewFileStore(cfg.Path), nil
	case KindYAML:
		path := cfg.Path
		if ext := filepath.Ext(path); ext != ".yml" && ext != ".yaml" {
			path = path[:len(path)-len(ext)] + ".yaml"
		}

		return NewFileStore(path), nil
	case KindSQLite:
		return NewSQLiteStore(cfg.Path)
	case KindPostgres:
		return NewPostgresStore(cfg.DSN)
	case KindS3:
		return NewObjectStore(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown manifest store %q (supported: %v)", cfg.Kind, Kinds())
	}
}
