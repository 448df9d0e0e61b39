package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"SiteAuditor/internal/ports"
)

// sqliteFile is used when the sqlite path names a directory.
const sqliteFile = "siteauditor.db"

// Supported storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Settings selects and configures a driver.
type Settings struct {
	Driver   string
	Path     string
	DSN      string
	RedisURL string
}

// Open builds the collaborator named by s.Driver.
func Open(ctx context.Context, s Settings) (ports.KeyValueStore, error) {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", DriverFile:
		return NewFileStore(s.Path)
	case DriverSQLite:
		path := s.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, sqliteFile)
		}
		return OpenSQLite(ctx, path)
	case DriverPostgres:
		return OpenPostgres(ctx, s.DSN)
	case DriverRedis:
		return OpenRedis(ctx, s.RedisURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.Driver)
	}
}
