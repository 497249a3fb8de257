package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate-server/internal/auth"
	"github.com/modelgate/modelgate-server/internal/config"
	"github.com/modelgate/modelgate-server/internal/db/sqlc"
)

// rawKeyPrefix makes gateway keys recognizable in logs and secret scanners.
const rawKeyPrefix = "mgw_"

var createKeyCmd = &cobra.Command{
	Use:   "create-key [principal-name]",
	Short: "Create a principal with a new API key",
	Long: `Create a principal and issue an API key for it.

The raw key is printed to standard output exactly once; only its SHA-256
digest is stored. Quota limits default to the values in the config file and
can be overridden per key.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreateKey,
}

func init() {
	createKeyCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	createKeyCmd.Flags().Int64("limit", 0, "Requests per window for this principal (0 = config default)")
	createKeyCmd.Flags().Duration("window", 0, "Sliding window length (0 = config default)")
	createKeyCmd.Flags().Duration("expires-in", 0, "Key lifetime (0 = never expires)")

	if err := createKeyCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

func runCreateKey(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	name := args[0]
	if name == "" {
		return fmt.Errorf("principal name cannot be empty")
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	limit, err := cmd.Flags().GetInt64("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	if limit <= 0 {
		limit = cfg.Quota.GetRateLimitMax()
	}

	window, err := cmd.Flags().GetDuration("window")
	if err != nil {
		return fmt.Errorf("failed to get window flag: %w", err)
	}
	if window <= 0 {
		window, err = cfg.Quota.GetRateLimitWindow()
		if err != nil {
			return fmt.Errorf("invalid quota window in config: %w", err)
		}
	}

	expiresIn, err := cmd.Flags().GetDuration("expires-in")
	if err != nil {
		return fmt.Errorf("failed to get expires-in flag: %w", err)
	}
	var expiresAt *time.Time
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn)
		expiresAt = &t
	}

	rawKey, err := generateRawKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			slog.Error("Error closing database connection", "error", closeErr)
		}
	}()

	// Principal and key are created in one transaction so a failure leaves
	// nothing half-provisioned.
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	q := sqlc.New(conn).WithTx(tx)

	principal, err := q.InsertPrincipal(ctx, sqlc.InsertPrincipalParams{
		Name:                  name,
		RateLimitMax:          limit,
		RateLimitTimeWindowMs: window.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", err)
	}

	key, err := q.InsertAPIKey(ctx, sqlc.InsertAPIKeyParams{
		KeyHash:     auth.HashKey(rawKey),
		PrincipalID: principal.ID,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("Created principal",
		"principal_id", principal.ID,
		"key_id", key.ID,
		"limit", limit,
		"window", window)

	// The raw key is shown once and never stored.
	fmt.Println(rawKey)
	return nil
}

// generateRawKey returns a new random key with the gateway prefix.
func generateRawKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return rawKeyPrefix + hex.EncodeToString(buf), nil
}
