package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helmsman-ai/helmsman/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷 Helmsman Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Helmsman Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.Path()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults apply): " + path)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ Invalid: %v\n", err)
			return
		}
		fmt.Printf("Model:   %s (%s)\n", cfg.Model.Name, cfg.Model.BaseURL)
		fmt.Printf("Mode:    %s (max level %s)\n", cfg.Permissions.Mode, cfg.Permissions.MaxLevel)
		fmt.Printf("Budgets: %d iterations, %s wall clock\n", cfg.Loop.MaxIterations, cfg.Loop.WallClock)
		if cfg.Trace.Enabled {
			fmt.Printf("Trace:   ✓ Kafka %v topic %s\n", cfg.Trace.Brokers, cfg.Trace.Topic)
		} else {
			fmt.Println("Trace:   ✗ Disabled")
		}
	},
}
