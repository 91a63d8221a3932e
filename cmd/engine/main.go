// Synnergy Network - Execution Engine Service
//
// Binds the engine's five logical operations (genesis/upgrade/execute/
// commit/query) to an illustrative HTTP surface, descended from the
// teacher's cmd/cli virtual_machine.go bootstrap: gorilla/mux there is
// replaced with go-chi/chi/v5 here (see DESIGN.md), and the same
// golang.org/x/time/rate limiter middleware gates every route. The root
// command follows the teacher's cmd/synnergy cobra layout, narrowed to this
// binary's two entry points: serving the HTTP surface, and running a
// file-driven genesis.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	root := &cobra.Command{
		Use:   "engine",
		Short: "Synnergy execution engine service",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newGenesisCmd())

	if err := root.Execute(); err != nil {
		log.WithError(err).Fatal("engine: command failed")
		os.Exit(1)
	}
}
