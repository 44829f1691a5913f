// Package cli provides shared CLI utilities for newsrag and newsragd.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envAnnotation marks flags and commands with the NEWSRAG_* variables behind them.
const envAnnotation = "newsrag_env"

// FlagSchema represents the JSON schema for a command flag.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	// Env is the variable used when the flag is not given
	Env      string `json:"env,omitempty"`
	Required bool   `json:"required"`
}

// CommandSchema represents the JSON schema for a command.
type CommandSchema struct {
	Name        string          `json:"name"`
	Use         string          `json:"use,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Env         []string        `json:"env,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// BindFlagEnv records that flag name falls back to the environment variable env.
func BindFlagEnv(flags *pflag.FlagSet, name, env string) {
	_ = flags.SetAnnotation(name, envAnnotation, []string{env})
}

// SetCommandEnv records the environment variables cmd and its subcommands read.
func SetCommandEnv(cmd *cobra.Command, vars ...string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[envAnnotation] = strings.Join(vars, ",")
}

// GenerateSchema generates a JSON schema for a cobra command. Environment
// variables declared on an ancestor are listed on the requested command only,
// not repeated on every subcommand.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := generateSchema(cmd)
	if schema.Env == nil {
		schema.Env = inheritedEnv(cmd)
	}
	return schema
}

func generateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Description: cmd.Short,
		Long:        cmd.Long,
		Flags:       extractFlags(cmd),
		Env:         commandEnv(cmd),
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == "help" || sub.Hidden {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, generateSchema(sub))
	}

	return schema
}

func commandEnv(cmd *cobra.Command) []string {
	vars, ok := cmd.Annotations[envAnnotation]
	if !ok || vars == "" {
		return nil
	}
	return strings.Split(vars, ",")
}

func inheritedEnv(cmd *cobra.Command) []string {
	for parent := cmd.Parent(); parent != nil; parent = parent.Parent() {
		if vars := commandEnv(parent); vars != nil {
			return vars
		}
	}
	return nil
}

func extractFlags(cmd *cobra.Command) []FlagSchema {
	var flags []FlagSchema

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help-json" || f.Name == "help" {
			return
		}
		flags = append(flags, flagToSchema(f))
	})

	return flags
}

func flagToSchema(f *pflag.Flag) FlagSchema {
	schema := FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
	}

	if env := f.Annotations[envAnnotation]; len(env) > 0 {
		schema.Env = env[0]
	}
	// MarkFlagRequired annotates the flag, not the command.
	if required := f.Annotations[cobra.BashCompOneRequiredFlag]; len(required) > 0 && required[0] == "true" {
		schema.Required = true
	}

	return schema
}

// PrintSchema outputs the command schema as JSON and exits.
func PrintSchema(cmd *cobra.Command) {
	schema := GenerateSchema(cmd)
	output, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
	os.Exit(0)
}

// AddHelpJSONFlag adds the --help-json flag to a command.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("help-json", false, "Output command schema as JSON")
}

// CheckHelpJSON checks os.Args for --help-json and outputs schema if found.
// Call this before cmd.Execute() to handle the flag before arg validation.
func CheckHelpJSON(rootCmd *cobra.Command) {
	for i, arg := range os.Args {
		if arg == "--help-json" {
			targetCmd := findTargetCommand(rootCmd, os.Args[1:i])
			PrintSchema(targetCmd)
		}
	}
}

func findTargetCommand(cmd *cobra.Command, args []string) *cobra.Command {
	if len(args) == 0 {
		return cmd
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == args[0] || sub.HasAlias(args[0]) {
			return findTargetCommand(sub, args[1:])
		}
	}

	return cmd
}
