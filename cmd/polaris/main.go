// Command polaris is the CLI entry point for the agent service.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/polarishq/polaris/cli"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	opts := cli.DefaultOptions()

	root := &cobra.Command{
		Use:           "polaris",
		Short:         "Tool-augmented coding agent over a persisted project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ProjectID, "project", opts.ProjectID, "project identifier")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	chat := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message to the agent and print its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	generate := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate a whole project from a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Generate(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(opts)
		},
	}

	check := &cobra.Command{
		Use:   "check [command]",
		Short: "Validate a command against the sandbox rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.CheckCommand(strings.Join(args, " "))
		},
	}

	root.AddCommand(chat, generate, toolsCmd, check)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
