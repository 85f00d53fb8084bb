package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/config"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify configuration",
	Long: `View the full configuration, get a specific key, or set a writable value.
Values shown include environment overrides (DB_URL, HOUSEKEEP_BACKEND);
set only ever writes the config file.`,
	RunE: runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to get and set a config key.
type configAccessor struct {
	get func(*config.Config) any
	set func(*config.Config, string) error
}

func (a configAccessor) writable() bool { return a.set != nil }

func stringAccessor(field func(*config.Config) *string) configAccessor {
	return configAccessor{
		get: func(c *config.Config) any { return *field(c) },
		set: func(c *config.Config, v string) error { *field(c) = v; return nil },
	}
}

func durationAccessor(key string, field func(*config.Config) *string) configAccessor {
	return configAccessor{
		get: func(c *config.Config) any { return *field(c) },
		set: func(c *config.Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return clierr.Newf(clierr.InvalidInput, "invalid %s %q: %v", key, v, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func intAccessor(key string, field func(*config.Config) *int) configAccessor {
	return configAccessor{
		get: func(c *config.Config) any { return *field(c) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return clierr.Newf(clierr.InvalidInput, "invalid %s %q: must be an integer", key, v)
			}
			*field(c) = n
			return nil // validation handles range check
		},
	}
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"version": {
			get: func(c *config.Config) any { return c.Version },
		},
		"name": stringAccessor(func(c *config.Config) *string { return &c.Name }),
		"store.backend": {
			get: func(c *config.Config) any { return c.Store.Backend },
			set: func(c *config.Config, v string) error {
				c.Store.Backend = strings.ToLower(v)
				return nil
			},
		},
		"store.dsn": {
			get: func(c *config.Config) any { return redactDSN(c.Store.DSN) },
			set: func(c *config.Config, v string) error { c.Store.DSN = v; return nil },
		},
		"store.tasks_dir":  stringAccessor(func(c *config.Config) *string { return &c.Store.TasksDir }),
		"store.s3.bucket":  stringAccessor(func(c *config.Config) *string { return &c.Store.S3.Bucket }),
		"store.s3.key":     stringAccessor(func(c *config.Config) *string { return &c.Store.S3.Key }),
		"store.s3.region":  stringAccessor(func(c *config.Config) *string { return &c.Store.S3.Region }),
		"store.s3.profile": stringAccessor(func(c *config.Config) *string { return &c.Store.S3.Profile }),
		"queue_file":       stringAccessor(func(c *config.Config) *string { return &c.QueueFile }),
		"sweep.interval_hours": intAccessor("sweep.interval_hours",
			func(c *config.Config) *int { return &c.Sweep.IntervalHours }),
		"sync.probe_interval": durationAccessor("sync.probe_interval",
			func(c *config.Config) *string { return &c.Sync.ProbeInterval }),
		"sync.probe_timeout": durationAccessor("sync.probe_timeout",
			func(c *config.Config) *string { return &c.Sync.ProbeTimeout }),
		"defaults.priority": intAccessor("defaults.priority",
			func(c *config.Config) *int { return &c.Defaults.Priority }),
		"defaults.assigned_to": stringAccessor(func(c *config.Config) *string { return &c.Defaults.AssignedTo }),
	}
}

// allConfigKeys returns config keys in display order.
func allConfigKeys() []string {
	return []string{
		"version",
		"name",
		"store.backend",
		"store.dsn",
		"store.tasks_dir",
		"store.s3.bucket",
		"store.s3.key",
		"store.s3.region",
		"store.s3.profile",
		"queue_file",
		"sweep.interval_hours",
		"sync.probe_interval",
		"sync.probe_timeout",
		"defaults.priority",
		"defaults.assigned_to",
	}
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accessors := configAccessors()

	if outputFormat() == output.FormatJSON {
		m := make(map[string]any, len(accessors))
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		return output.JSON(os.Stdout, m)
	}

	for _, key := range allConfigKeys() {
		val := accessors[key].get(cfg)
		fmt.Fprintf(os.Stdout, "%-22s %v\n", key, formatConfigValue(val))
	}
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := args[0]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key)
	}

	val := acc.get(cfg)

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, val)
	}

	fmt.Fprintln(os.Stdout, formatConfigValue(val))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	dir, err := resolveDir()
	if err != nil {
		return err
	}
	// Environment overrides are left out so they are never written back.
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key)
	}
	if !acc.writable() {
		return clierr.Newf(clierr.InvalidInput, "config key %q is read-only", key)
	}

	if err := acc.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"key": key, "value": acc.get(cfg)})
	}

	output.Messagef(os.Stdout, "Set %s = %v", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func formatConfigValue(val any) string {
	if s, ok := val.(string); ok && s == "" {
		return "--"
	}
	return fmt.Sprintf("%v", val)
}
