package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle and exit",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := a.Reconciler.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	fmt.Printf("promoted: %d  closed: %d  gaps: %d\n", rep.Promoted, rep.Closed, rep.Gaps)
	if rep.Err != nil {
		return rep.Err
	}
	return nil
}
