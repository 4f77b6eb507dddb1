package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored session snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🗂 Helmsman Sessions")

		cfg, err := config.Load()
		if err != nil {
			cfg = config.Default()
		}
		store, err := session.NewManager(cfg.Paths.SessionsDir)
		if err != nil {
			fmt.Printf("Sessions error: %v\n", err)
			return
		}

		infos := store.List()
		if len(infos) == 0 {
			fmt.Println("No stored sessions.")
			return
		}
		for _, info := range infos {
			state := color.GreenString(info.State)
			if info.State == "failed" {
				state = color.RedString("failed (" + info.Reason + ")")
			}
			fmt.Printf("%s  %s  iter=%d\n    %s\n", info.ID[:8], state, info.Iteration, info.Goal)
		}
	},
}
