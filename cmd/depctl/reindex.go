package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reindexIndexID int64
	reindexHeapID  int64
)

var reindexCmd = &cobra.Command{
	Use:     "reindex",
	GroupID: "objects",
	Short:   "Rebuild an index in place",
	Long: `Rebuilds an index's physical contents without touching its dependency edges
(§4.5 "Reindex"). Pass --index for a single index. --heap is accepted but
always fails: this CLI cannot list the indexes on a heap.

Examples:
  depctl reindex --index 200
  depctl reindex --heap 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case reindexIndexID != 0:
			if err := app.lc.ReindexIndex(rootCtx, reindexIndexID); err != nil {
				return fmt.Errorf("reindex %d: %w", reindexIndexID, err)
			}
			if jsonOutput {
				outputJSON(map[string]any{"reindexed": []int64{reindexIndexID}})
			} else {
				fmt.Printf("reindexed index %d\n", reindexIndexID)
			}
			return nil
		case reindexHeapID != 0:
			// Enumerating every index on a heap requires a relation->indexes
			// catalog scan, which this minimal CLI's MetaStore doesn't expose;
			// ReindexRelation itself (internal/indexlc/reindex.go) takes an
			// explicit index-id list.
			return fmt.Errorf("reindexing every index on a heap requires an explicit index id list; pass --index for a specific one")
		default:
			return fmt.Errorf("one of --index or --heap is required")
		}
	},
}

func init() {
	reindexCmd.Flags().Int64Var(&reindexIndexID, "index", 0, "index object id to rebuild")
	reindexCmd.Flags().Int64Var(&reindexHeapID, "heap", 0, "heap object id whose indexes should all be rebuilt")

	rootCmd.AddCommand(reindexCmd)
}
