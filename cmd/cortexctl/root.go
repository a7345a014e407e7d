package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/app"
	"github.com/kailas-cloud/cortex/internal/config"
	logpkg "github.com/kailas-cloud/cortex/internal/logger"
	cortex "github.com/kailas-cloud/cortex/pkg/sdk"
)

// cli carries state shared by every subcommand. The backend is built lazily
// in PersistentPreRunE so --help never touches the store.
type cli struct {
	env        string
	configPath string
	server     string
	apiKey     string

	cfg     config.Config
	logger  *zap.Logger
	backend backend
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "cortexctl",
		Short:        "Operate cortex collections from the command line",
		SilenceUsage: true,
		Long: `cortexctl ingests directories into cortex collections, lists and removes
collections, asks questions against them and keeps them in sync with a
directory on disk. It reads the same config/{ENV}.yaml as the server, or
talks to a running server when --server (or CORTEX_SERVER) is set.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "config environment (local, dev, prod)")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "explicit config file, overrides --env")
	root.PersistentFlags().StringVar(&c.server, "server", os.Getenv("CORTEX_SERVER"), "cortex server URL; empty runs against the configured store")
	root.PersistentFlags().StringVar(&c.apiKey, "api-key", os.Getenv("CORTEX_API_KEY"), "API key sent to --server")

	root.AddCommand(
		newIngestCmd(c),
		newListCmd(c),
		newDeleteCmd(c),
		newClearCmd(c),
		newQueryCmd(c),
		newWatchCmd(c),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	_ = godotenv.Load()

	var err error
	switch {
	case c.configPath != "":
		c.cfg, err = config.LoadFile(c.configPath)
	case c.server != "":
		// Remote mode only needs logging and loader defaults.
		c.cfg.ApplyDefaults()
	default:
		c.cfg, err = config.Load(c.env)
	}
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	loggerEnv := c.env
	if loggerEnv != "prod" {
		loggerEnv = "local"
	}
	level := c.cfg.Logging.Level
	if level == "" {
		level = "warn"
	}
	c.logger, err = logpkg.NewLogger(loggerEnv, logpkg.Options{Level: level, Format: c.cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("cannot create logger: %w", err)
	}

	if c.server != "" {
		client, err := cortex.New(c.server, cortex.WithAPIKey(c.apiKey))
		if err != nil {
			return fmt.Errorf("cannot connect to cortex: %w", err)
		}
		c.backend = &remoteBackend{client: client}
		return nil
	}

	a, err := app.New(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("cannot initialize cortex: %w", err)
	}
	c.backend = &localBackend{app: a}
	return nil
}

// run wraps a subcommand so the backend is released even when it fails.
func (c *cli) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer c.close()
		return fn(cmd, args)
	}
}

func (c *cli) close() {
	if c.backend != nil {
		c.backend.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
