package tools

import (
	"fmt"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/registry"
)

// RegisterAll installs the built-in action set according to the tool
// toggles in cfg, then seals the registry. The planning actions are
// always available; side-effecting families are opt-in.
func RegisterAll(reg *registry.Registry, cfg *config.Config, plan *planner.Planner, onPlanUpdate func([]planner.Task)) error {
	defs := []*registry.Definition{
		NewThinkDefinition(),
		NewTodoWriteDefinition(plan, onPlanUpdate),
	}

	if cfg.Tools.EnableFilesystem {
		defs = append(defs,
			NewFileReadDefinition(),
			NewFileListDefinition(),
			NewGlobDefinition(),
		)
	}
	if cfg.Tools.EnableFileWrite {
		defs = append(defs,
			NewFileWriteDefinition(cfg.Paths.Workspace),
			NewFileEditDefinition(cfg.Paths.Workspace),
		)
	}
	if cfg.Tools.EnableExec {
		defs = append(defs, NewExecDefinition(cfg.Paths.Workspace, cfg.Tools.ExecTimeout))
	}
	if cfg.Tools.EnableWebFetch {
		defs = append(defs, NewWebFetchDefinition())
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	reg.Seal()
	return nil
}
