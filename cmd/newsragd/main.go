package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/newsrag/internal/cli"
	"github.com/cloo-solutions/newsrag/internal/cli/admin"
)

func main() {
	rootCmd := admin.NewRootCmd()

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
