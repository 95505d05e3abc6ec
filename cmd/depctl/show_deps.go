package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalogkit/depengine/internal/depgraph"
	"github.com/catalogkit/depengine/internal/objaddr"
)

var (
	showDepsObjectID int64
	showDepsSubID    int32
	showDepsReverse  bool
)

type edgeView struct {
	Depender objaddr.Address `json:"depender"`
	Referent objaddr.Address `json:"referent"`
	Type     string          `json:"type"`
}

var showDepsCmd = &cobra.Command{
	Use:     "show-deps",
	GroupID: "deps",
	Short:   "List the dependency edges for an object",
	Long: `Lists every edge where the object is the depender (the default), or with
--reverse, every edge where it is the referent — i.e. what would be visited
by a DROP's cascade.

Examples:
  depctl show-deps --id 200
  depctl show-deps --id 100 --reverse`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := objaddr.Address{ClassID: app.tableClassID(), ObjectID: showDepsObjectID, SubID: showDepsSubID}

		var edges []depgraph.Edge
		var err error
		if showDepsReverse {
			edges, err = app.deps.ScanByReferent(rootCtx, addr)
		} else {
			edges, err = app.deps.ScanByDepender(rootCtx, addr)
		}
		if err != nil {
			return fmt.Errorf("scan dependency edges for %v: %w", addr, err)
		}

		views := make([]edgeView, 0, len(edges))
		for _, e := range edges {
			views = append(views, edgeView{Depender: e.Depender, Referent: e.Referent, Type: string(e.Type)})
		}

		if jsonOutput {
			outputJSON(views)
			return nil
		}
		if len(views) == 0 {
			fmt.Println("no dependency edges found")
			return nil
		}
		for _, v := range views {
			fmt.Printf("%+v --[%s]--> %+v\n", v.Depender, v.Type, v.Referent)
		}
		return nil
	},
}

func init() {
	showDepsCmd.Flags().Int64Var(&showDepsObjectID, "id", 0, "object id (required)")
	showDepsCmd.Flags().Int32Var(&showDepsSubID, "sub-id", 0, "sub-object id; 0 for the whole object")
	showDepsCmd.Flags().BoolVar(&showDepsReverse, "reverse", false, "show edges where this object is the referent, not the depender")
	_ = showDepsCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(showDepsCmd)
}
