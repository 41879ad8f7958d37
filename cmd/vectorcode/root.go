package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/vectorcode/internal/app"
	"github.com/dshills/vectorcode/internal/config"
	"github.com/dshills/vectorcode/internal/logger"
	"github.com/dshills/vectorcode/internal/observability"
	"github.com/dshills/vectorcode/internal/output"
	"github.com/dshills/vectorcode/pkg/types"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	configFile  string
	envFile     string
	projectRoot string
	pipe        bool
	logLevel    string
}

// session is the state a command runs with
type session struct {
	cfg     *config.Config
	app     *app.App
	logger  *slog.Logger
	printer *output.Printer
	tracer  *observability.TracerProvider
}

func (s *session) Close(ctx context.Context) {
	if s.app != nil {
		_ = s.app.Close()
	}
	if s.tracer != nil {
		_ = s.tracer.Shutdown(ctx)
	}
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string) int {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g := &globalOptions{}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, errorMessage(err, g.projectRoot))
		return 1
	}
	return 0
}

func newRootCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vectorcode",
		Short:         "Index code into a vector database and retrieve relevant files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "global config file (default $XDG_CONFIG_HOME/vectorcode/config.json)")
	flags.StringVar(&g.envFile, "env-file", "", "dotenv file loaded before reading the environment")
	flags.StringVar(&g.projectRoot, "project_root", "", "project root (default: nearest .vectorcode or .git above the working directory)")
	flags.BoolVar(&g.pipe, "pipe", false, "write machine-readable JSON to stdout")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		queryCmd(g),
		vectoriseCmd(g),
		lsCmd(g),
		dropCmd(g),
		serveCmd(g),
		versionCmd(),
	)
	return cmd
}

// resolveRoot fills in the project root from the working directory when the flag is unset
func (g *globalOptions) resolveRoot() (string, error) {
	if g.projectRoot != "" {
		g.projectRoot = config.ExpandPath(g.projectRoot, true)
		return g.projectRoot, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	g.projectRoot = config.FindProjectRoot(wd)
	return g.projectRoot, nil
}

// loadConfig reads the layered configuration for the current project and applies overrides
func (g *globalOptions) loadConfig(overrides config.Overrides) (*config.Config, error) {
	root, err := g.resolveRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(g.loadOptions(root))
	if err != nil {
		return nil, err
	}
	cfg.ProjectRoot = root
	cfg.MergeFrom(overrides)
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *globalOptions) loadOptions(root string) config.LoadOptions {
	opts := config.LoadOptions{ProjectRoot: root, EnvFile: g.envFile}
	if g.configFile != "" {
		opts.GlobalFile = config.ExpandPath(g.configFile, true)
	}
	return opts
}

// open builds the logger, tracer, backend and printer for a command
func (g *globalOptions) open(cmd *cobra.Command, overrides config.Overrides) (*session, error) {
	cfg, err := g.loadConfig(overrides)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	log := logger.New(logger.Config{Level: level, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()})

	s := &session{
		cfg:     cfg,
		logger:  log,
		printer: output.New(cmd.OutOrStdout(), g.pipe),
	}

	ctx := cmd.Context()
	s.tracer, err = observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "vectorcode",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}

	s.app, err = app.New(ctx, cfg, g.loadOptions(cfg.ProjectRoot), app.WithLogger(log))
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

// errorMessage renders a command failure for the terminal
func errorMessage(err error, root string) string {
	switch {
	case errors.Is(err, types.ErrNoCollection):
		return fmt.Sprintf("There's no existing collection for %s", root)
	case errors.Is(err, types.ErrSchemaMismatch):
		return "The collection was embedded with a different embedding model.\n" + err.Error()
	case errors.Is(err, types.ErrRerankerUnavailable):
		return "The configured reranker is not available.\n" + err.Error()
	default:
		return err.Error()
	}
}
