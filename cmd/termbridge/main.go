package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/termbridge/internal/config"
	"github.com/ehr/termbridge/internal/domain/conceptmap"
	"github.com/ehr/termbridge/internal/domain/translation"
	"github.com/ehr/termbridge/internal/platform/auth"
	"github.com/ehr/termbridge/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "termbridge",
		Short:        "NAMASTE ↔ ICD-11 TM2 translation service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(translateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates configuration for commands that need the
// full runtime setup.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the translation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			autoMigrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(autoMigrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving (postgres ledger only)")
	return cmd
}

func runServer(autoMigrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.UsingDevSecret {
		logger.Warn().Msg("TOKEN_SECRET not set; signing tokens with the built-in development secret")
	}

	e, cleanup, err := newServer(context.Background(), cfg, logger, autoMigrate)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer cleanup()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("ledger", cfg.LedgerBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres ledger schema",
	}

	withMigrator := func(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.MigrationsDir
		}

		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, dir))
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with access tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for an ABHA ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, _ := cmd.Flags().GetString("identity")
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.NewTokenVerifier([]byte(cfg.TokenSecret), cfg.TokenTTL).Issue(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().String("identity", "", "ABHA ID to embed in the token")
	cmd.AddCommand(issueCmd)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the translation history ledger",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the history entries recorded for an ABHA ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, _ := cmd.Flags().GetString("identity")
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			ledger, _, closeLedger, err := openLedger(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer closeLedger()

			entries, err := ledger.ListBy(ctx, identity)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"history": entries})
		},
	}
	listCmd.Flags().String("identity", "", "ABHA ID whose history to print")
	cmd.AddCommand(listCmd)
	return cmd
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a code between NAM and TM2 from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			system, _ := cmd.Flags().GetString("system")
			code, _ := cmd.Flags().GetString("code")
			token, _ := cmd.Flags().GetString("token")
			save, _ := cmd.Flags().GetBool("save-history")
			if code == "" {
				return fmt.Errorf("--code is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			table, err := conceptmap.LoadFile(cfg.MappingFile)
			if err != nil {
				return err
			}

			ctx := context.Background()
			ledger, _, closeLedger, err := openLedger(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer closeLedger()

			verifier := auth.NewTokenVerifier([]byte(cfg.TokenSecret), cfg.TokenTTL)
			svc := translation.NewService(table, verifier, ledger, zerolog.New(cmd.ErrOrStderr()))

			req := translation.Request{System: system, Code: code, SaveHistory: save}
			if token != "" {
				req.Credential = "Bearer " + token
			}
			result, err := svc.Translate(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().String("system", "NAM", "Code system of --code (NAM or TM2)")
	cmd.Flags().String("code", "", "Code to translate")
	cmd.Flags().Bool("save-history", false, "Record the lookup in the history of the --token holder")
	cmd.Flags().String("token", "", "Access token identifying whose history to record into")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
