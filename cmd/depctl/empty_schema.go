package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalogkit/depengine/internal/objaddr"
)

var (
	emptySchemaObjectID int64
	emptySchemaQuiet    bool
)

var emptySchemaCmd = &cobra.Command{
	Use:     "empty-schema",
	GroupID: "deps",
	Short:   "Drop everything that depends on an object, without dropping it",
	Long: `Runs deleteWhatDependsOn (§4.4): cascades through every object that depends
on the given object, but leaves the object itself in place — the "DROP
SCHEMA CASCADE but keep the schema" shape.

Example:
  depctl empty-schema --id 500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := objaddr.Address{ClassID: app.tableClassID(), ObjectID: emptySchemaObjectID}

		if err := app.engine.DeleteWhatDependsOn(rootCtx, addr, !emptySchemaQuiet); err != nil {
			return fmt.Errorf("empty schema %d: %w", emptySchemaObjectID, err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"emptied": emptySchemaObjectID})
		} else {
			fmt.Printf("dropped everything depending on object %d\n", emptySchemaObjectID)
		}
		return nil
	},
}

func init() {
	emptySchemaCmd.Flags().Int64Var(&emptySchemaObjectID, "id", 0, "object id whose dependents should be dropped (required)")
	emptySchemaCmd.Flags().BoolVar(&emptySchemaQuiet, "quiet", false, "suppress per-object drop notices")
	_ = emptySchemaCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(emptySchemaCmd)
}
