package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
)

const fileMode = 0o600

// Sentinel errors.
var (
	ErrNotFound = errors.New("no housekeep directory found (run 'housekeep init' to create one)")
	ErrInvalid  = errors.New("invalid config")
)

// Environment variables that override the config file.
const (
	EnvBackend    = "HOUSEKEEP_BACKEND"
	EnvDBURL      = "DB_URL"
	EnvDBUser     = "DB_USER"
	EnvDBPassword = "DB_PASSWORD"
)

// Config represents the housekeep configuration.
type Config struct {
	Version   int            `yaml:"version"`
	Name      string         `yaml:"name"`
	Store     StoreConfig    `yaml:"store"`
	QueueFile string         `yaml:"queue_file"`
	Sweep     SweepConfig    `yaml:"sweep"`
	Sync      SyncConfig     `yaml:"sync"`
	Defaults  DefaultsConfig `yaml:"defaults"`

	// dir is the absolute path to the housekeep directory (not serialized).
	dir string `yaml:"-"`
}

// StoreConfig selects and configures the task store.
type StoreConfig struct {
	Backend  string   `yaml:"backend"`
	DSN      string   `yaml:"dsn,omitempty"`
	TasksDir string   `yaml:"tasks_dir,omitempty"`
	S3       S3Config `yaml:"s3,omitempty"`
}

// S3Config locates the object used by the s3 backend.
type S3Config struct {
	Bucket  string `yaml:"bucket,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"`
}

// SweepConfig schedules the overdue sweeper.
type SweepConfig struct {
	IntervalHours int `yaml:"interval_hours"`
}

// SyncConfig tunes the reconnect loop used by serve.
type SyncConfig struct {
	ProbeInterval string `yaml:"probe_interval,omitempty"`
	ProbeTimeout  string `yaml:"probe_timeout,omitempty"`
}

// DefaultsConfig holds default values for new tasks.
type DefaultsConfig struct {
	Priority   int    `yaml:"priority"`
	AssignedTo string `yaml:"assigned_to,omitempty"`
}

// Dir returns the absolute path to the housekeep directory.
func (c *Config) Dir() string {
	return c.dir
}

// SetDir sets the housekeep directory path on the config.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

// ConfigPath returns the absolute path to the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.dir, ConfigFileName)
}

// TasksPath returns the absolute path to the tasks directory.
func (c *Config) TasksPath() string {
	return c.resolve(c.Store.TasksDir)
}

// QueuePath returns the absolute path to the pending operation queue.
func (c *Config) QueuePath() string {
	return c.resolve(c.QueueFile)
}

// DatabasePath returns the sqlite database file, relative paths being
// resolved against the housekeep directory.
func (c *Config) DatabasePath() string {
	if c.Store.DSN == "" {
		return filepath.Join(c.dir, DefaultDatabaseFile)
	}
	return c.resolve(c.Store.DSN)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// SweepInterval returns the time between overdue sweeps.
func (c *Config) SweepInterval() time.Duration {
	if c.Sweep.IntervalHours <= 0 {
		return DefaultSweepHours * time.Hour
	}
	return time.Duration(c.Sweep.IntervalHours) * time.Hour
}

// ProbeInterval returns how often serve probes an unreachable store.
func (c *Config) ProbeInterval() time.Duration {
	return durationOr(c.Sync.ProbeInterval, DefaultProbeInterval)
}

// ProbeTimeout returns the time limit for one probe.
func (c *Config) ProbeTimeout() time.Duration {
	return durationOr(c.Sync.ProbeTimeout, DefaultProbeTimeout)
}

func durationOr(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return mustDuration(fallback)
}

// NewDefault creates a Config with default values.
func NewDefault(name string) *Config {
	return &Config{
		Version: CurrentVersion,
		Name:    name,
		Store: StoreConfig{
			Backend:  BackendFile,
			TasksDir: DefaultTasksDir,
			S3:       S3Config{Key: DefaultS3Key},
		},
		QueueFile: DefaultQueueFile,
		Sweep:     SweepConfig{IntervalHours: DefaultSweepHours},
		Sync: SyncConfig{
			ProbeInterval: DefaultProbeInterval,
			ProbeTimeout:  DefaultProbeTimeout,
		},
		Defaults: DefaultsConfig{Priority: DefaultPriority},
	}
}

// ApplyEnv overrides settings from the environment. DB_URL selects the
// postgres backend unless HOUSEKEEP_BACKEND says otherwise; DB_USER and
// DB_PASSWORD fill in the credentials of a postgres URL that lacks them.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDBURL); v != "" {
		c.Store.DSN = v
		if c.Store.Backend != BackendPostgres && c.Store.Backend != BackendSQLite {
			c.Store.Backend = BackendPostgres
		}
	}
	if v := getenv(EnvBackend); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if c.Store.Backend == BackendPostgres {
		c.Store.DSN = withCredentials(c.Store.DSN, getenv(EnvDBUser), getenv(EnvDBPassword))
	}
}

func withCredentials(dsn, user, password string) string {
	if user == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.User != nil {
		return dsn
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if c.QueueFile == "" {
		return fmt.Errorf("%w: queue_file is required", ErrInvalid)
	}
	if c.Sweep.IntervalHours < 0 {
		return fmt.Errorf("%w: sweep.interval_hours must be >= 0", ErrInvalid)
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	const minPriority, maxPriority = 1, 5
	if c.Defaults.Priority < minPriority || c.Defaults.Priority > maxPriority {
		return fmt.Errorf("%w: defaults.priority must be between %d and %d",
			ErrInvalid, minPriority, maxPriority)
	}
	return nil
}

func (c *Config) validateStore() error {
	if !slices.Contains(Backends, c.Store.Backend) {
		return fmt.Errorf("%w: store.backend %q must be one of %s",
			ErrInvalid, c.Store.Backend, strings.Join(Backends, ", "))
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.TasksDir == "" {
			return fmt.Errorf("%w: store.tasks_dir is required for the file backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn (or %s) is required for the postgres backend", ErrInvalid, EnvDBURL)
		}
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("%w: store.s3.bucket is required for the s3 backend", ErrInvalid)
		}
		if c.Store.S3.Key == "" {
			return fmt.Errorf("%w: store.s3.key is required for the s3 backend", ErrInvalid)
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	for field, v := range map[string]string{
		"sync.probe_interval": c.Sync.ProbeInterval,
		"sync.probe_timeout":  c.Sync.ProbeTimeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%w: invalid %s %q", ErrInvalid, field, v)
		}
	}
	return nil
}

// Init creates a new housekeep directory: the directory itself, the tasks
// subdirectory for the file backend, and the config file. configure runs on
// the default config before it is validated and written.
func Init(dir, name string, configure ...func(*Config)) (*Config, error) {
	const dirMode = 0o750

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg := NewDefault(name)
	cfg.SetDir(absDir)
	for _, fn := range configure {
		fn(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absDir, dirMode); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	if cfg.Store.Backend == BackendFile {
		if err := os.MkdirAll(cfg.TasksPath(), dirMode); err != nil {
			return nil, fmt.Errorf("creating tasks directory: %w", err)
		}
	}

	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to its config file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(c.ConfigPath(), data, fileMode)
}

// Load reads and validates a config from the given housekeep directory.
// Environment overrides are not applied; see ApplyEnv.
func Load(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	path := filepath.Join(absDir, ConfigFileName)
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted source
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.dir = absDir

	oldVersion := cfg.Version
	if err := migrate(&cfg); err != nil {
		return nil, err
	}
	if cfg.Version != oldVersion {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("saving migrated config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindDir walks upward from startDir looking for a housekeep directory
// containing config.yml. Returns the absolute path to the housekeep directory.
func FindDir(startDir string) (string, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	dir := absStart
	for {
		candidate := filepath.Join(dir, DefaultDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Join(dir, DefaultDir), nil
		}

		// Also check if we're inside the housekeep directory itself.
		candidate = filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", clierr.New(clierr.HomeNotFound,
				"no housekeep directory found (run 'housekeep init' to create one)")
		}
		dir = parent
	}
}
