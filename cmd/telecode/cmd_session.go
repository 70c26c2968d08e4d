package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/telecode/internal/session"
	"github.com/user/telecode/internal/state"
	"github.com/user/telecode/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionEndCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

func openManager(ctx context.Context) (*session.Manager, error) {
	cfg := loadConfig()
	store := state.NewFileStore(cfg.DataDir)
	window := time.Duration(cfg.Session.InactivityHours) * time.Hour
	mgr := session.NewManager(store, cfg.WorkspaceRoot, window)
	if err := mgr.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	return mgr, nil
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(context.Background())
		if err != nil {
			return err
		}

		active := mgr.ListActive()
		if len(active) == 0 {
			fmt.Println("No active sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOWNER\tWORKING DIR\tLAST ACTIVE")
		for _, s := range active {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				s.ID,
				s.Owner,
				s.WorkingDir,
				s.LastActiveAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <id>",
	Short: "End a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mgr, err := openManager(ctx)
		if err != nil {
			return err
		}

		if err := mgr.End(ctx, types.SessionID(args[0])); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		fmt.Printf("Session %s ended.\n", args[0])
		return nil
	},
}
