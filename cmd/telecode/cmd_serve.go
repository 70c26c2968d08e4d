package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/telecode/internal/command"
	"github.com/user/telecode/internal/config"
	"github.com/user/telecode/internal/repo"
	"github.com/user/telecode/internal/session"
	"github.com/user/telecode/internal/state"
	"github.com/user/telecode/internal/sweeper"
	"github.com/user/telecode/internal/telegram"
	"github.com/user/telecode/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the telecode daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "telecode.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// buildValidator compiles the configured deny-list, falling back to the
// built-in rules when none are configured.
func buildValidator(cfg *config.Config) (*command.Validator, error) {
	rules := make([]command.Rule, 0, len(cfg.DenyRules))
	for _, r := range cfg.DenyRules {
		rules = append(rules, command.Rule{Pattern: r.Pattern, Reason: r.Reason})
	}
	return command.NewValidator(rules)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkspaceRoot, 0755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session core
	store := state.NewFileStore(cfg.DataDir)
	window := time.Duration(cfg.Session.InactivityHours) * time.Hour
	sessions := session.NewManager(store, cfg.WorkspaceRoot, window)
	if err := sessions.Restore(ctx); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	validator, err := buildValidator(cfg)
	if err != nil {
		return fmt.Errorf("build validator: %w", err)
	}

	executor := command.NewExecutor(command.ExecutorConfig{
		Timeout:       time.Duration(cfg.Exec.TimeoutSeconds) * time.Second,
		MaxOutput:     cfg.Exec.MaxOutputBytes,
		MaxConcurrent: int64(cfg.Exec.MaxConcurrent),
		EnvAllowlist:  cfg.Exec.EnvAllowlist,
	})

	repos := repo.NewManager(cfg.WorkspaceRoot,
		time.Duration(cfg.Git.CloneTimeoutSeconds)*time.Second, cfg.Git.Token)

	slog.Info("telecode started",
		"data_dir", cfg.DataDir,
		"workspace_root", cfg.WorkspaceRoot,
		"log_level", cfg.LogLevel,
		"inactivity_window", window,
		"exec_timeout", time.Duration(cfg.Exec.TimeoutSeconds)*time.Second,
		"max_concurrent", cfg.Exec.MaxConcurrent,
		"pid_file", pidPath,
	)

	// Expiry sweep
	sweep := sweeper.New(sessions, cfg.Session.SweepSchedule)
	if err := sweep.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweep.Stop()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, sessions, validator, executor, repos, cfg.AllowedUsers, cfg.AdminUsers)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started", "allowed_users", len(cfg.AllowedUsers))
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Admin HTTP server
	if cfg.HTTP.Enabled {
		adminSrv := webhook.NewServer(sessions)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: adminSrv,
		}
		go func() {
			slog.Info("admin server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
