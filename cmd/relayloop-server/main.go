package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/relayloop/relayloop/internal/config"
	"github.com/relayloop/relayloop/internal/domain/patient"
	"github.com/relayloop/relayloop/internal/domain/vitalsign"
	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/internal/platform/db"
	"github.com/relayloop/relayloop/internal/platform/validation"
	"github.com/relayloop/relayloop/internal/seed"
	"github.com/relayloop/relayloop/internal/setup"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relayloop-server",
		Short: "RelayLoop patient management API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && !cfg.IsDev() {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, os.DirFS(dir))
			fmt.Printf("Running migrations from: %s\n", dir)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, os.DirFS(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create .env from the template and install dependencies",
		Run: func(cmd *cobra.Command, args []string) {
			if err := setup.Run(cmd.Context(), setup.Options{Out: cmd.OutOrStdout()}); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "setup failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := patient.NewService(
				patient.NewPatientRepoPG(pool),
				patient.NewMedicationRepoPG(pool),
				patient.NewNoteRepoPG(pool),
				vitalsign.NewRepoPG(pool),
				validation.New(),
			)
			res, err := seed.Run(ctx, svc, seed.Patients(), logger)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d patient(s), skipped %d existing.\n", res.Created, res.Skipped)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed JWT for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			dept, _ := cmd.Flags().GetString("department")
			user, _ := cmd.Flags().GetString("user")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.JWTExpiresIn
			}
			if role != auth.RoleAdmin && dept == "" {
				return fmt.Errorf("--department is required for role %q", role)
			}

			tok, err := auth.IssueToken(jwtConfig(cfg), auth.Principal{
				UserID:     user,
				Name:       user,
				Role:       role,
				Department: dept,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("role", auth.RoleDoctor, "Role claim (admin, doctor, nurse)")
	cmd.Flags().String("department", "", "Department claim")
	cmd.Flags().String("user", "local-user", "Subject claim")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_EXPIRES_IN)")
	return cmd
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.JWTSecret),
	}
}

// uptime formats the time since start rounded to seconds.
func uptime(start time.Time) string {
	return time.Since(start).Round(time.Second).String()
}
