// Package main provides the forge binary, a small shell over the forge
// execution boundary for probing a database with composed statements.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/zoobzio/forge"
	"github.com/zoobzio/forge/internal/config"
	_ "modernc.org/sqlite"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "forge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Compose and run hierarchical SQL statements",
		Long: `Forge renders nested JSON selects and cascading mutations from Go
entity descriptors. The forge command runs statements through the same
execution boundary the library uses.

Configuration is read from flags, FORGE_* environment variables and an
optional forge.yaml, in that order of precedence.`,
		SilenceUsage: true,
	}

	config.DefineFlags(cmd.PersistentFlags())

	cmd.AddCommand(execCmd(), tableExistsCmd(), versionCmd())
	return cmd
}

func execCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a statement and print its JSON result or affected row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withForge(cmd, func(ctx context.Context, s *session) error {
				statement := forge.Raw(args[0])
				if write {
					rows, err := s.forge.Exec(ctx, statement)
					if err != nil {
						return err
					}
					s.logger.Info("statement executed", "rows_affected", rows)
					_, err = fmt.Fprintln(cmd.OutOrStdout(), rows)
					return err
				}

				result, err := s.forge.Query(ctx, statement)
				if err != nil {
					return err
				}
				s.logger.Debug("query returned", "result_bytes", len(result))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Run as a mutation and print rows affected")
	return cmd
}

func tableExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table-exists <name>",
		Short: "Report whether a table exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withForge(cmd, func(ctx context.Context, s *session) error {
				exists, err := s.forge.TableExists(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), exists)
				return err
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

type session struct {
	forge  *forge.Forge
	logger *Logger
}

// withForge loads configuration, opens the database and hands a ready
// context to fn. The connection is closed when fn returns.
func withForge(cmd *cobra.Command, fn func(context.Context, *session) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Logging)

	db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("failed to close database", "error", cerr)
		}
	}()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	dialect, err := forge.DialectByName(cfg.EffectiveDialect())
	if err != nil {
		return err
	}

	opts := []forge.Option{forge.WithDialect(dialect)}
	if cfg.EscapeLiterals {
		opts = append(opts, forge.WithEscapedLiterals())
	}
	f, err := forge.New(db, opts...)
	if err != nil {
		return err
	}

	logger.Debug("database opened",
		"driver", cfg.Database.Driver,
		"dialect", dialect.Name(),
		"escape_literals", cfg.EscapeLiterals,
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, &session{forge: f, logger: logger}); err != nil {
		logger.Error("command failed", "command", strings.Fields(cmd.Use)[0], "error", err)
		return err
	}
	return nil
}
