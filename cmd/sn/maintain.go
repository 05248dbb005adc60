package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"sn-go/internal/app"
	"sn-go/internal/sn"

	"github.com/spf13/cobra"
)

// maintain command
var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Repair inconsistencies left by partial failures",
}

var maintainGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Repair one-sided follow edges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "ReconcileGraph", func(ctx context.Context, a *app.SNApp) error {
			r, err := a.Service().ReconcileGraph(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Scanned %d user(s)\n", r.UsersScanned)
			fmt.Printf("Following added:   %d\n", r.FollowingAdded)
			fmt.Printf("Following removed: %d\n", r.FollowingRemoved)
			fmt.Printf("Followers removed: %d\n", r.FollowersRemoved)
			return nil
		})
	},
}

var maintainResolveCmd = &cobra.Command{
	Use:   "resolve [FILE]",
	Short: "Resolve one finding read as JSON from FILE or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening finding: %w", err)
			}
			defer f.Close()
			r = f
		}
		var f sn.Finding
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			return fmt.Errorf("decoding finding: %w", err)
		}

		return withApp(cmd, "ResolveFinding", func(ctx context.Context, a *app.SNApp) error {
			if err := a.Service().ResolveFinding(ctx, f); err != nil {
				return fmt.Errorf("resolving %s: %w", f.Kind, err)
			}
			fmt.Printf("Resolved %s\n", f.Kind)
			return nil
		})
	},
}

var maintainDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled reconciliation until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		return withApp(cmd, "Maintain", func(ctx context.Context, a *app.SNApp) error {
			return a.RunMaintenance(ctx)
		})
	},
}

func init() {
	maintainCmd.AddCommand(maintainGraphCmd)
	maintainCmd.AddCommand(maintainResolveCmd)
	maintainCmd.AddCommand(maintainDaemonCmd)

	rootCmd.AddCommand(maintainCmd)
}
