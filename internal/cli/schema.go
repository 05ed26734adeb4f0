// Package cli provides the convoflowd commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagDoc describes a single command flag in machine-readable form.
type FlagDoc struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// CommandDoc describes a command tree in machine-readable form, consumed by
// deployment tooling that generates wrapper scripts around convoflowd.
type CommandDoc struct {
	Name        string       `json:"name"`
	Use         string       `json:"use,omitempty"`
	Description string       `json:"description,omitempty"`
	Flags       []FlagDoc    `json:"flags,omitempty"`
	Subcommands []CommandDoc `json:"subcommands,omitempty"`
}

// DescribeCommand builds the CommandDoc for a command and its visible subcommands.
func DescribeCommand(cmd *cobra.Command) CommandDoc {
	doc := CommandDoc{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Description: cmd.Short,
		Flags:       describeFlags(cmd),
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == "help" || sub.Hidden {
			continue
		}
		doc.Subcommands = append(doc.Subcommands, DescribeCommand(sub))
	}

	return doc
}

func describeFlags(cmd *cobra.Command) []FlagDoc {
	var docs []FlagDoc
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" || f.Name == "describe-json" {
			return
		}
		docs = append(docs, FlagDoc{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
			Description: f.Usage,
			Required:    isRequiredFlag(f),
		})
	})
	return docs
}

func isRequiredFlag(f *pflag.Flag) bool {
	if f.Annotations == nil {
		return false
	}
	_, ok := f.Annotations[cobra.BashCompOneRequiredFlag]
	return ok
}

// AddDescribeFlag registers --describe-json on the command tree.
func AddDescribeFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("describe-json", false, "Print the command schema as JSON and exit")
}

// CheckDescribe scans os.Args for --describe-json and, when present, prints
// the schema for the addressed command and exits. Runs before Execute so arg
// validation cannot reject the request first.
func CheckDescribe(rootCmd *cobra.Command) {
	for i, arg := range os.Args {
		if arg != "--describe-json" {
			continue
		}
		doc := DescribeCommand(resolveCommand(rootCmd, os.Args[1:i]))
		output, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error describing command: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(output))
		os.Exit(0)
	}
}

func resolveCommand(cmd *cobra.Command, args []string) *cobra.Command {
	if len(args) == 0 {
		return cmd
	}
	for _, sub := range cmd.Commands() {
		if sub.Name() == args[0] || sub.HasAlias(args[0]) {
			return resolveCommand(sub, args[1:])
		}
	}
	return cmd
}
