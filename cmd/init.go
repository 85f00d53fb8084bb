package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/config"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new housekeep directory",
	Long: `Creates a housekeep directory with config.yml. The file backend also
gets a tasks/ subdirectory.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("name", "", "household name (defaults to current directory name)")
	initCmd.Flags().String("backend", config.BackendFile, "task store ("+strings.Join(config.Backends, ", ")+")")
	initCmd.Flags().String("dsn", "", "sqlite path or postgres URL")
	initCmd.Flags().String("bucket", "", "S3 bucket for the s3 backend")
	initCmd.Flags().String("region", "", "AWS region for the s3 backend")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir := flagDir
	if dir == "" {
		dir = config.DefaultDir
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	// Check if already initialized.
	if _, err := os.Stat(filepath.Join(absDir, config.ConfigFileName)); err == nil {
		return clierr.Newf(clierr.HomeAlreadyExists, "housekeep already initialized in %s", absDir).
			WithDetails(map[string]any{"dir": absDir})
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = defaultName()
	}

	backend, _ := cmd.Flags().GetString("backend")
	backend = strings.ToLower(backend)
	if !slices.Contains(config.Backends, backend) {
		return clierr.Newf(clierr.InvalidInput, "invalid backend %q; valid: %s",
			backend, strings.Join(config.Backends, ", "))
	}
	dsn, _ := cmd.Flags().GetString("dsn")
	bucket, _ := cmd.Flags().GetString("bucket")
	region, _ := cmd.Flags().GetString("region")

	cfg, err := config.Init(absDir, name, func(c *config.Config) {
		c.Store.Backend = backend
		c.Store.DSN = dsn
		c.Store.S3.Bucket = bucket
		c.Store.S3.Region = region
	})
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{
			"status":  "initialized",
			"dir":     absDir,
			"name":    name,
			"config":  cfg.ConfigPath(),
			"backend": backend,
			"queue":   cfg.QueuePath(),
		})
	}

	output.Messagef(os.Stdout, "Initialized %q in %s", name, absDir)
	output.Messagef(os.Stdout, "  Config:  %s", cfg.ConfigPath())
	output.Messagef(os.Stdout, "  Backend: %s", backend)
	if backend == config.BackendFile {
		output.Messagef(os.Stdout, "  Tasks:   %s", cfg.TasksPath())
	}
	output.Messagef(os.Stdout, "  Queue:   %s", cfg.QueuePath())
	return nil
}
