// Command glucoflow serves the glucose reading API.
//
// Usage:
//
//	glucoflow [serve] [flags]
//	glucoflow migrate [flags]
//
// A store is required: pass --connection-string (or set GLUC_STORE_CONN_STR),
// --connection-secret, or run with --test-mode to keep readings in memory.
package main

import (
	"fmt"
	"os"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/cmd/glucoflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
