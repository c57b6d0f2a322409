/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ssargent/actionkv/pkg/config"
	"github.com/ssargent/actionkv/pkg/metrics"
	"github.com/ssargent/actionkv/pkg/store"
)

// skipStore marks commands that run without opening the data file
const skipStore = "skip-store"

// app wires the command tree to a single store session
type app struct {
	root    *cobra.Command
	session *session

	configPath string
	dataFile   string
	indexMode  string
	indexKey   string
	logLevel   string
	syncWrites bool
	metrics    bool
}

func newApp() *app {
	a := &app{}

	a.root = &cobra.Command{
		Use:   "akv",
		Short: "actionkv - append-only log-structured KV store",
		Long: `actionkv stores key-value pairs in a single append-only file.
Every record is checksummed; the index is rebuilt by replaying the log,
or read from a snapshot persisted in the log itself (--index-mode=disk).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipStore] == "true" {
				return nil
			}
			return a.open(cmd)
		},
	}

	flags := a.root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default "+config.GetDefaultConfigPath()+" if present)")
	flags.StringVarP(&a.dataFile, "file", "f", "", "Data file for the store")
	flags.StringVar(&a.indexMode, "index-mode", "", "Index mode: memory or disk")
	flags.StringVar(&a.indexKey, "index-key", "", "Reserved key for the index snapshot")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.syncWrites, "sync-writes", false, "fsync after every append")
	flags.BoolVar(&a.metrics, "metrics", false, "Collect operation metrics (see 'akv stats')")

	a.root.AddCommand(
		newGetCmd(a),
		newInsertCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newFindCmd(a),
		newKeysCmd(a),
		newDumpCmd(a),
		newVerifyCmd(a),
		newSnapshotCmd(a),
		newStatsCmd(a),
		newShellCmd(a),
		newConfigCmd(a),
	)

	return a
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	a := newApp()
	if err := a.execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree and always closes the store afterwards
func (a *app) execute(args []string) error {
	a.root.SetArgs(args)
	err := a.root.Execute()
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// loadConfig merges the config file (if any) with explicitly set flags
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := a.configPath
	if path == "" && config.ConfigExists(config.GetDefaultConfigPath()) {
		path = config.GetDefaultConfigPath()
	}
	return a.loadConfigFrom(cmd, path)
}

// loadConfigFrom reads path, or starts from the defaults when path is empty,
// and applies the flags set on the command line
func (a *app) loadConfigFrom(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.DataFile = a.dataFile
	}
	if flags.Changed("index-mode") {
		cfg.IndexMode = a.indexMode
	}
	if flags.Changed("index-key") {
		cfg.IndexKey = a.indexKey
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("sync-writes") {
		cfg.SyncWrites = a.syncWrites
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = a.metrics
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open builds the session: logger, metrics, store, and the initial replay
func (a *app) open(cmd *cobra.Command) error {
	return a.openSession(cmd, true)
}

// openUnloaded opens the store without replaying the log
func (a *app) openUnloaded(cmd *cobra.Command) error {
	return a.openSession(cmd, false)
}

func (a *app) openSession(cmd *cobra.Command, load bool) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	level, _ := cfg.Logging.SlogLevel()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	var registry *prometheus.Registry
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		m = metrics.New(registry)
	}

	kv, err := store.NewKVStore(store.KVStoreConfig{
		FilePath:   cfg.DataFile,
		SyncWrites: cfg.SyncWrites,
		IndexKey:   []byte(cfg.IndexKey),
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if load {
		if err := kv.Load(); err != nil {
			_ = kv.Close()
			return fmt.Errorf("failed to load data from store: %w", err)
		}
	}

	a.session = &session{
		store:    kv,
		config:   cfg,
		registry: registry,
		logger:   logger,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}
	return nil
}

func (a *app) close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.store.Close()
	a.session = nil
	return err
}

// withSession adapts a session action to a cobra RunE
func (a *app) withSession(fn func(s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if a.session == nil {
			return fmt.Errorf("store is not open")
		}
		return fn(a.session, args)
	}
}
