package config

import "fmt"

// migrate upgrades a config from its current version to CurrentVersion.
// Returns an error if the config version is newer than what this binary supports.
func migrate(cfg *Config) error {
	if cfg.Version == CurrentVersion {
		return nil
	}
	if cfg.Version > CurrentVersion {
		return fmt.Errorf(
			"%w: config version %d is newer than supported version %d (upgrade housekeep)",
			ErrInvalid, cfg.Version, CurrentVersion,
		)
	}
	if cfg.Version < 0 {
		return fmt.Errorf("%w: config version %d is invalid", ErrInvalid, cfg.Version)
	}

	for cfg.Version < CurrentVersion {
		fn, ok := migrations[cfg.Version]
		if !ok {
			return fmt.Errorf("%w: no migration path from version %d", ErrInvalid, cfg.Version)
		}
		if err := fn(cfg); err != nil {
			return fmt.Errorf("migrating config from v%d: %w", cfg.Version, err)
		}
	}

	return nil
}

// migrations maps each version to the function that migrates it to the next version.
// The migration function must increment cfg.Version after a successful migration.
var migrations = map[int]func(*Config) error{
	0: migrateV0ToV1,
}

// migrateV0ToV1 upgrades a hand-written config without a version field by
// filling in every section left empty.
func migrateV0ToV1(cfg *Config) error { //nolint:unparam // signature must match migrations map type
	def := NewDefault(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = "home"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}
	if cfg.Store.TasksDir == "" {
		cfg.Store.TasksDir = def.Store.TasksDir
	}
	if cfg.Store.S3.Key == "" {
		cfg.Store.S3.Key = def.Store.S3.Key
	}
	if cfg.QueueFile == "" {
		cfg.QueueFile = def.QueueFile
	}
	if cfg.Sweep.IntervalHours == 0 {
		cfg.Sweep = def.Sweep
	}
	if cfg.Sync.ProbeInterval == "" {
		cfg.Sync.ProbeInterval = def.Sync.ProbeInterval
	}
	if cfg.Sync.ProbeTimeout == "" {
		cfg.Sync.ProbeTimeout = def.Sync.ProbeTimeout
	}
	if cfg.Defaults.Priority == 0 {
		cfg.Defaults.Priority = def.Defaults.Priority
	}
	cfg.Version = 1
	return nil
}
