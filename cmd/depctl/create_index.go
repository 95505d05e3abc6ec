package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/catalogkit/depengine/internal/indexlc"
)

var (
	createIndexHeapID   int64
	createIndexName     string
	createIndexSchema   string
	createIndexColumns  []string
	createIndexUnique   bool
	createIndexPrimary  bool
	createIndexConstrnt bool
)

var createIndexCmd = &cobra.Command{
	Use:     "create-index",
	GroupID: "objects",
	Short:   "Create an index on a heap and register its dependency edges",
	Long: `Creates an index over one or more heap column attribute numbers, registering
the AUTO (bare index) or INTERNAL (constraint-backed index) dependency edges
and, for --primary or --constraint indexes, the backing constraint row.

Examples:
  depctl create-index --heap 100 --name t_idx --columns 1
  depctl create-index --heap 100 --name t_pkey --columns 1 --primary --constraint`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := parseColumnKeys(createIndexColumns)
		if err != nil {
			return err
		}

		isConstraint := createIndexConstrnt || createIndexPrimary
		req := indexlc.CreateIndexRequest{
			HeapID:    createIndexHeapID,
			IndexName: createIndexName,
			Schema:    createIndexSchema,
			Info: indexlc.IndexInfo{
				Keys:         keys,
				IsUnique:     createIndexUnique || isConstraint,
				IsPrimary:    createIndexPrimary,
				IsConstraint: isConstraint,
			},
		}
		if createIndexPrimary {
			req.Info.ConstraintType = indexlc.ConstraintPrimaryKey
		} else if isConstraint {
			req.Info.ConstraintType = indexlc.ConstraintUnique
		}

		indexID, err := app.lc.CreateIndex(rootCtx, req)
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"index_id": indexID, "heap_id": createIndexHeapID, "name": createIndexName})
		} else {
			fmt.Printf("created index %s.%s (id=%d) on heap %d\n", createIndexSchema, createIndexName, indexID, createIndexHeapID)
		}
		return nil
	},
}

// parseColumnKeys turns "1,2,3" into heap column keys (attribute numbers).
// A bare "0" entry (or an empty list) models an expression-only key, per
// §4.5's "all-expression index" fallback.
func parseColumnKeys(cols []string) ([]indexlc.ColumnKey, error) {
	var keys []indexlc.ColumnKey
	for _, c := range cols {
		for _, part := range strings.Split(c, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseInt(part, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid column attribute number %q: %w", part, err)
			}
			keys = append(keys, indexlc.ColumnKey{AttNum: int32(n)})
		}
	}
	if len(keys) == 0 {
		keys = append(keys, indexlc.ColumnKey{AttNum: 0})
	}
	return keys, nil
}

func init() {
	createIndexCmd.Flags().Int64Var(&createIndexHeapID, "heap", 0, "heap (table) object id to index (required)")
	createIndexCmd.Flags().StringVar(&createIndexName, "name", "", "index name (required)")
	createIndexCmd.Flags().StringVar(&createIndexSchema, "schema", "public", "schema the index belongs to")
	createIndexCmd.Flags().StringSliceVar(&createIndexColumns, "columns", nil, "comma-separated 1-indexed heap column attribute numbers")
	createIndexCmd.Flags().BoolVar(&createIndexUnique, "unique", false, "create a unique index")
	createIndexCmd.Flags().BoolVar(&createIndexPrimary, "primary", false, "back a primary key constraint")
	createIndexCmd.Flags().BoolVar(&createIndexConstrnt, "constraint", false, "back a unique constraint")
	_ = createIndexCmd.MarkFlagRequired("heap")
	_ = createIndexCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(createIndexCmd)
}
