package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/telecode/internal/command"
	"github.com/user/telecode/internal/session"
	"github.com/user/telecode/internal/state"
	"github.com/user/telecode/internal/types"
)

var runOwner int64

func init() {
	runCmd.Flags().Int64Var(&runOwner, "owner", 0, "owner ID whose session to use")
	rootCmd.AddCommand(runCmd)
}

// runCmd executes a single command through the same validate/execute path
// the bot uses, against the owner's session (created on demand). Useful for
// testing the deny-list and session setup without a chat round-trip.
var runCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Run one command in a local session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx := context.Background()

		store := state.NewFileStore(cfg.DataDir)
		window := time.Duration(cfg.Session.InactivityHours) * time.Hour
		sessions := session.NewManager(store, cfg.WorkspaceRoot, window)
		if err := sessions.Restore(ctx); err != nil {
			return fmt.Errorf("restore sessions: %w", err)
		}

		owner := types.OwnerID(runOwner)
		sess, err := sessions.Get(ctx, owner)
		if err != nil {
			sess, err = sessions.Create(ctx, owner, "")
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
		}

		validator, err := buildValidator(cfg)
		if err != nil {
			return fmt.Errorf("build validator: %w", err)
		}

		text := strings.Join(args, " ")
		if verdict := validator.Validate(text); verdict != nil {
			return fmt.Errorf("command blocked: %s", verdict.Reason)
		}

		executor := command.NewExecutor(command.ExecutorConfig{
			Timeout:       time.Duration(cfg.Exec.TimeoutSeconds) * time.Second,
			MaxOutput:     cfg.Exec.MaxOutputBytes,
			MaxConcurrent: int64(cfg.Exec.MaxConcurrent),
			EnvAllowlist:  cfg.Exec.EnvAllowlist,
		})

		result, err := executor.Execute(ctx, sess, text)
		if err != nil {
			return err
		}
		sessions.Touch(ctx, sess.ID)

		if result.Stdout != "" {
			fmt.Fprint(os.Stdout, result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
		if result.TimedOut {
			return fmt.Errorf("timed out after %dms", result.DurationMs)
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("exit code %d", result.ExitCode)
		}
		return nil
	},
}
