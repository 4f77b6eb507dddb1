package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/registry"
	"github.com/helmsman-ai/helmsman/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the actions available under the current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🧰 Helmsman Tools")

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config warning: %v (using defaults)\n", err)
			cfg = config.Default()
		}

		reg := registry.New()
		if err := tools.RegisterAll(reg, cfg, planner.New(), nil); err != nil {
			fmt.Printf("Tool registration error: %v\n", err)
			return
		}

		for _, def := range reg.List() {
			fmt.Printf("%s  %s [%s]\n    %s\n",
				color.GreenString(def.Name),
				color.New(color.Faint).Sprintf("(%s)", def.Group),
				def.Level,
				def.Description)
		}
	},
}
