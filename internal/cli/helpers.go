package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/modest/internal/app"
	"github.com/nhle/modest/internal/credential"
	"github.com/nhle/modest/internal/logging"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/ops"
	"github.com/nhle/modest/internal/store"
)

const defaultShutdownTimeout = 30 * time.Second

func loadConfig(cmd *cobra.Command) (*model.AppConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return model.LoadConfigWithFlags(path, cmd.Flags())
}

// newLogger writes to the configured log file when toFile is set, so the
// terminal interface keeps the screen. Otherwise it writes to stderr.
func newLogger(cfg *model.AppConfig, toFile bool) (*zap.SugaredLogger, error) {
	if !toFile || cfg.Log.File == "" {
		return logging.New(cfg.Log.Level, cfg.Log.Development)
	}
	if err := ensureDir(cfg.Log.File); err != nil {
		return nil, err
	}
	return logging.New(cfg.Log.Level, cfg.Log.Development, cfg.Log.File)
}

func openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if cfg.Store.Path != ":memory:" {
		if err := ensureDir(cfg.Store.Path); err != nil {
			return nil, err
		}
	}
	return store.NewSQLiteStore(cfg.Store.Path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// openApp opens the store and wires the application around it. The App
// owns the store from then on.
func openApp(cmd *cobra.Command, cfg *model.AppConfig, log *zap.SugaredLogger) (*app.App, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	offline, err := cmd.Flags().GetBool("offline")
	if err != nil {
		st.Close()
		return nil, err
	}

	a, err := app.New(cmd.Context(), app.Options{
		Config:    cfg,
		Store:     st,
		Connector: ops.EmailConnector{Password: accountPassword, Log: log.Named("imap")},
		Log:       log,
		Online:    !offline,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func accountPassword(acct model.AccountConfig) (string, error) {
	return credential.Password(acct.ID, acct.CredentialKey())
}

func shutdownTimeout(cfg *model.AppConfig) time.Duration {
	if cfg.Shutdown.TimeoutSec > 0 {
		return time.Duration(cfg.Shutdown.TimeoutSec) * time.Second
	}
	return defaultShutdownTimeout
}
