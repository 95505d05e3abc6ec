// Command depctl is the composition root wiring internal/deletion,
// internal/indexlc, internal/depgraph, internal/catalogstore, and
// internal/config together into a cobra CLI. Grounded on cmd/bd/main.go's
// root-command assembly (package-level rootCmd, PersistentPreRun building a
// signal-aware context and resolving viper-backed settings, a single
// long-lived store opened once per process) and cmd/bd's per-verb-file
// layout (one file per subcommand under the same package).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/catalogkit/depengine/internal/config"
)

var (
	cfgFile    string
	jsonOutput bool

	rootCtx    context.Context
	rootCancel context.CancelFunc

	app *application
)

var rootCmd = &cobra.Command{
	Use:   "depctl",
	Short: "depctl - object-dependency and DROP-cascade engine CLI",
	Long:  `depctl manages objects in a dependency registry: create/drop/reindex indexes, inspect dependency edges, and run cascade or restrict deletion.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !cmd.Flags().Changed("json") {
			jsonOutput = cfg.CLI.JSON
		}

		a, err := newApplication(rootCtx, cfg)
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		app = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		err := app.Close(rootCtx)
		rootCancel()
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a depengine.toml (or .yaml) config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of human-readable text")

	rootCmd.AddGroup(&cobra.Group{ID: "objects", Title: "Index Lifecycle:"})
	rootCmd.AddGroup(&cobra.Group{ID: "deps", Title: "Dependencies & Deletion:"})
}

func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func fail(err error) {
	if jsonOutput {
		errObj := map[string]string{"error": err.Error()}
		encoder := json.NewEncoder(os.Stderr)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(errObj)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
