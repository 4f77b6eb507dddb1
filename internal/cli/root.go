// Package cli implements the helmsman command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/helmsman-ai/helmsman/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  _   _      _\n" +
		" | | | | ___| |_ __ ___  ___ _ __ ___   __ _ _ __\n" +
		" | |_| |/ _ \\ | '_ ` _ \\/ __| '_ ` _ \\ / _` | '_ \\\n" +
		" |  _  |  __/ | | | | | \\__ \\ | | | | | (_| | | | |\n" +
		" |_| |_|\\___|_|_| |_| |_|___/_| |_| |_|\\__,_|_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "helmsman",
	Short: "Helmsman - autonomous task agent",
	Long:  color.CyanString(logo) + "\nAn agent core that pursues goals through permission-gated tool use.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
