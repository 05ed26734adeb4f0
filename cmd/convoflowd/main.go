package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/convoflow-ai/convoflow/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "convoflowd",
		Short: "Convoflow daemon and CLI",
		Long:  "Convoflow daemon for running the API server and managing document indexing",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IndexCmd())
	rootCmd.AddCommand(cli.SearchCmd())
	cli.AddDescribeFlag(rootCmd)
	cli.CheckDescribe(rootCmd)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
