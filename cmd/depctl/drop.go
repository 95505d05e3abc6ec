package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalogkit/depengine/internal/deletion"
	"github.com/catalogkit/depengine/internal/objaddr"
)

var (
	dropObjectID int64
	dropSubID    int32
	dropCascade  bool
)

var dropCmd = &cobra.Command{
	Use:     "drop",
	GroupID: "deps",
	Short:   "Drop an object, CASCADE or RESTRICT",
	Long: `Runs performDeletion (§4.4) on a single table-class object: RESTRICT (the
default) fails with the dependent-objects list if anything still depends on
it; --cascade recursively drops every dependent too.

Examples:
  depctl drop --id 100
  depctl drop --id 100 --cascade`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := deletion.Restrict
		if dropCascade {
			mode = deletion.Cascade
		}
		addr := objaddr.Address{ClassID: app.tableClassID(), ObjectID: dropObjectID, SubID: dropSubID}

		if err := app.engine.PerformDeletion(rootCtx, addr, mode); err != nil {
			return fmt.Errorf("drop %d: %w", dropObjectID, err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"dropped": dropObjectID, "mode": mode.String()})
		} else {
			fmt.Printf("dropped object %d (%s)\n", dropObjectID, mode.String())
		}
		return nil
	},
}

func init() {
	dropCmd.Flags().Int64Var(&dropObjectID, "id", 0, "object id to drop (required)")
	dropCmd.Flags().Int32Var(&dropSubID, "sub-id", 0, "sub-object id (e.g. column position); 0 for the whole object")
	dropCmd.Flags().BoolVar(&dropCascade, "cascade", false, "cascade to dependents instead of restricting")
	_ = dropCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(dropCmd)
}
