// Package cmd implements the rolodex command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/rolodex/internal/config"
	"github.com/zjrosen/rolodex/internal/contacts/registry"
	"github.com/zjrosen/rolodex/internal/flags"
	"github.com/zjrosen/rolodex/internal/infrastructure/sqlite"
	"github.com/zjrosen/rolodex/internal/log"
)

var version = "dev"

// cli holds state shared by every subcommand of one command tree.
type cli struct {
	cfgFile   string
	dbPath    string
	debugFlag bool

	cfg        config.Config
	configPath string
	flags      *flags.Registry
	closeLog   func()
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "rolodex",
		Short: "A contact registry with a CLI and an HTTP API",
		Long: `rolodex keeps contacts (name, telephone number, email and account) in a
SQLite-backed registry. Contacts can be managed from the command line or over
HTTP with 'rolodex serve'.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"config file (default: .rolodex/config.yaml, then ~/.config/rolodex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.dbPath, "db", "",
		"path to the contacts database (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&c.debugFlag, "debug", false,
		"write debug logs (also ROLODEX_DEBUG)")

	rootCmd.AddCommand(
		newAddCmd(c),
		newUpdateCmd(c),
		newDeleteCmd(c),
		newGetCmd(c),
		newListCmd(c),
		newServeCmd(c),
		newFlagsCmd(c),
	)

	return rootCmd, c
}

// load reads configuration and starts logging. It runs before every subcommand.
func (c *cli) load(cmd *cobra.Command) error {
	v := viper.New()
	setDefaults(v, config.Defaults())
	if f := cmd.Root().PersistentFlags().Lookup("db"); f != nil && f.Changed {
		v.Set("db_path", c.dbPath)
	}
	if c.debugFlag {
		v.Set("debug", true)
	}

	if err := c.readConfig(v); err != nil {
		return err
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", c.configPath, err)
	}
	c.cfg = cfg

	if err := c.initLogging(); err != nil {
		return err
	}
	log.Info(log.CatConfig, "Config loaded", "path", c.configPath, "db", cfg.DBPath)

	c.flags = flags.New(cfg.Flags)
	return nil
}

// readConfig resolves the config file. Lookup order:
// 1. --config
// 2. .rolodex/config.yaml (current directory)
// 3. ~/.config/rolodex/config.yaml (user config)
// When nothing is found a commented default is written to .rolodex/config.yaml.
func (c *cli) readConfig(v *viper.Viper) error {
	switch {
	case c.cfgFile != "":
		if _, err := os.Stat(c.cfgFile); errors.Is(err, os.ErrNotExist) {
			if err := config.WriteDefaultConfig(c.cfgFile); err != nil {
				return err
			}
		}
		v.SetConfigFile(c.cfgFile)
	case fileExists(config.LocalConfigPath):
		v.SetConfigFile(config.LocalConfigPath)
	default:
		if userPath := config.DefaultConfigPath(); userPath != "" {
			v.AddConfigPath(filepath.Dir(userPath))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		// If write fails, just continue with defaults (no config file)
		if writeErr := config.WriteDefaultConfig(config.LocalConfigPath); writeErr == nil {
			v.SetConfigFile(config.LocalConfigPath)
			_ = v.ReadInConfig()
		}
	default:
		return fmt.Errorf("reading config: %w", err)
	}

	c.configPath = v.ConfigFileUsed()
	if c.configPath == "" {
		c.configPath = config.LocalConfigPath
	}
	return nil
}

func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("cache.idempotency_ttl", d.Cache.IdempotencyTTL)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	for name, enabled := range d.Flags {
		v.SetDefault("flags."+name, enabled)
	}
}

// initLogging enables the file logger for --debug, ROLODEX_DEBUG or debug: true.
func (c *cli) initLogging() error {
	if os.Getenv("ROLODEX_DEBUG") == "" && !c.cfg.Debug {
		return nil
	}

	logPath := os.Getenv("ROLODEX_LOG")
	if logPath == "" {
		logPath = c.cfg.LogPath
	}
	if logPath == "" {
		logPath = "debug.log"
	}

	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	c.closeLog = cleanup
	return nil
}

// openRegistry opens the SQLite-backed registry, or a memory-only one when the
// memory-only flag is set. The returned close func releases the database.
func (c *cli) openRegistry(opts ...registry.Option) (*registry.Registry, func() error, error) {
	if c.flags.Enabled(flags.FlagMemoryOnly) {
		log.Info(log.CatConfig, "memory-only enabled, contacts will not be persisted")
		return registry.New(opts...), func() error { return nil }, nil
	}

	db, err := sqlite.NewDB(c.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %s: %w", c.cfg.DBPath, err)
	}
	r, err := registry.Open(db.ContactStore(), opts...)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("loading contacts: %w", err)
	}
	return r, db.Close, nil
}

func (c *cli) shutdown() {
	if c.closeLog != nil {
		c.closeLog()
		c.closeLog = nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Execute runs the root command
func Execute() error {
	rootCmd, c := newRootCmd()
	defer c.shutdown()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
