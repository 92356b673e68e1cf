package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sirosfoundation/go-msv3/internal/app"
	"github.com/sirosfoundation/go-msv3/internal/config"
	"github.com/sirosfoundation/go-msv3/internal/telemetry"
)

// Version is set at build time with -ldflags "-X main.Version=v1.0.0".
var Version = "dev"

// cli carries state shared by all subcommands.
type cli struct {
	v   *viper.Viper
	cfg *config.Config
	app *app.App
	tel *telemetry.Providers
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix("MSV3")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "msv3ctl",
		Short:         "Probe and query MSV3 pharmacy wholesalers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "configuration file (env MSV3_CONFIG)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the configuration")
	root.PersistentFlags().String("log-level", "", "override log.level")
	_ = c.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = c.v.BindPFlag("env-file", root.PersistentFlags().Lookup("env-file"))
	_ = c.v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		c.probeCmd(),
		c.availabilityCmd(),
		c.orderCmd(),
		c.logsCmd(),
		c.configCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig reads the dotenv file and the configuration.
func (c *cli) loadConfig() error {
	if err := godotenv.Load(c.v.GetString("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}

	path := c.v.GetString("config")
	if path == "" {
		c.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}
	if lvl := c.v.GetString("log-level"); lvl != "" {
		c.cfg.Log.Level = lvl
	}
	return nil
}

// start loads the configuration and wires the application. The returned
// function releases it.
func (c *cli) start(cmd *cobra.Command) (func(), error) {
	if err := c.loadConfig(); err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	logger := telemetry.NewLogger(cmd.ErrOrStderr(), c.cfg.Log.Level, c.cfg.Log.Format)

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     c.cfg.Telemetry.Enabled,
		ServiceName: c.cfg.Telemetry.ServiceName,
		Version:     Version,
		Exporter:    c.cfg.Telemetry.Exporter,
		Endpoint:    c.cfg.Telemetry.Endpoint,
		Insecure:    c.cfg.Telemetry.Insecure,
		Output:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	c.tel = tel

	a, err := app.New(ctx, c.cfg, app.Options{Logger: logger, Telemetry: tel})
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	c.app = a

	return func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := a.Close(shutdownCtx); err != nil {
			logger.Warn("closing application", "error", err)
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}, nil
}

// withApp runs fn with a wired application.
func (c *cli) withApp(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		stop, err := c.start(cmd)
		if err != nil {
			return err
		}
		defer stop()
		return fn(cmd, args)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "msv3ctl %s\n", Version)
		},
	}
}
