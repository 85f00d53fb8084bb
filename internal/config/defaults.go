// Package config handles housekeep configuration.
package config

import "time"

const (
	// DefaultDir is the default housekeep directory name.
	DefaultDir = "housekeep"
	// DefaultTasksDir is the default tasks subdirectory for the file backend.
	DefaultTasksDir = "tasks"
	// DefaultQueueFile is the default pending operation queue file.
	DefaultQueueFile = "pending.jsonl"
	// DefaultDatabaseFile is the sqlite database used when no DSN is set.
	DefaultDatabaseFile = "housekeep.db"
	// DefaultS3Key is the object key for the s3 backend.
	DefaultS3Key = "housekeep/tasks.json"
	// DefaultPriority is the priority given to new tasks.
	DefaultPriority = 3
	// DefaultSweepHours is the time between overdue sweeps.
	DefaultSweepHours = 24
	// DefaultProbeInterval is how often serve checks whether the store is back.
	DefaultProbeInterval = "30s"
	// DefaultProbeTimeout bounds a single reachability probe.
	DefaultProbeTimeout = "5s"

	// ConfigFileName is the name of the config file within the housekeep directory.
	ConfigFileName = "config.yml"

	// CurrentVersion is the current config schema version.
	CurrentVersion = 1
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Backends lists the accepted store.backend values.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendPostgres, BackendS3}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}
