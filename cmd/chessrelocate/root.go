package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/hailam/chessrelocate/internal/app"
	"github.com/hailam/chessrelocate/internal/config"
	"github.com/hailam/chessrelocate/internal/uci"
)

const stopTimeout = 15 * time.Second

var (
	// Global flags.
	envFile     string
	logLevel    string
	dataDir     string
	metricsAddr string
	threads     int
	hashMB      int
	noStore     bool
)

var rootCmd = &cobra.Command{
	Use:   "chessrelocate [command...]",
	Short: "UCI chess engine with a piece relocation explorer",
	Long: `chessrelocate speaks the UCI protocol on stdin and stdout.

Besides normal searches it can enumerate every way of relocating four of
the side to move's pieces and report the best resulting position.

With arguments, the arguments are run as a single UCI command and the
program exits once it has answered.

Examples:
  # Run as a UCI engine
  chessrelocate

  # Search the start position to depth 12
  chessrelocate go depth 12

  # Run the speed benchmark
  chessrelocate bench`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		var commands []string
		if len(args) > 0 {
			commands = []string{strings.Join(args, " ")}
		}
		return runSession(cmd, commands)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&envFile, "env-file", ".env", "file of CHESSRELOCATE_* variables to load if present")
	f.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&dataDir, "data-dir", "", "directory for saved options and relocation history")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.IntVar(&threads, "threads", 0, "default search threads")
	f.IntVar(&hashMB, "hash", 0, "default hash size in MB")
	f.BoolVar(&noStore, "no-store", false, "do not open the database")
}

// loadConfig reads the environment and applies any flags given.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("threads") {
		cfg.Threads = threads
	}
	if flags.Changed("hash") {
		cfg.HashMB = hashMB
	}
	if flags.Changed("no-store") {
		cfg.NoStore = noStore
	}
	return cfg, cfg.Validate()
}

// runSession starts the application and either serves the protocol or runs
// commands one after another, waiting for each search to answer.
func runSession(cmd *cobra.Command, commands []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var session *uci.Session
	application := app.New(cfg,
		app.IO{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()},
		fx.Populate(&session),
	)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("starting: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()

	if len(commands) == 0 {
		return session.Run(ctx)
	}
	defer session.Close()
	for _, c := range commands {
		if !session.Execute(ctx, c) {
			break
		}
		session.Wait()
	}
	return nil
}

// positionCommand builds the position command for an optional FEN.
func positionCommand(fen string) string {
	if fen == "" {
		return "position startpos"
	}
	return "position fen " + fen
}
