package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/helmsman-ai/helmsman/internal/agent"
	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/event"
	"github.com/helmsman-ai/helmsman/internal/inference"
	"github.com/helmsman-ai/helmsman/internal/permission"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/progress"
	"github.com/helmsman-ai/helmsman/internal/registry"
	"github.com/helmsman-ai/helmsman/internal/session"
	"github.com/helmsman-ai/helmsman/internal/timeline"
	"github.com/helmsman-ai/helmsman/internal/tools"
	"github.com/helmsman-ai/helmsman/internal/trace"
)

var (
	runAutoApprove bool
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Pursue a goal to completion",
	Args:  cobra.MinimumNArgs(1),
	Run:   runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runAutoApprove, "yes", "y", false, "Auto-approve all actions (sandbox use only)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Debug logging")
}

func runRun(cmd *cobra.Command, args []string) {
	goal := strings.TrimSpace(strings.Join(args, " "))
	printHeader("⚓ Helmsman Run")

	level := slog.LevelWarn
	if runVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.Default()
	}
	if runAutoApprove {
		cfg.Permissions.Mode = string(permission.ModeAutoApproveAll)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit trail. Best-effort: a broken database degrades to no audit,
	// never to a refused run.
	var tl *timeline.Service
	var sink permission.AuditSink
	if svc, err := timeline.NewService(cfg.Paths.TimelineDB); err == nil {
		tl = svc
		sink = svc
		defer svc.Close()
	} else {
		fmt.Printf("Timeline warning: %v\n", err)
	}

	store, err := session.NewManager(cfg.Paths.SessionsDir)
	if err != nil {
		fmt.Printf("Sessions warning: %v\n", err)
		store = nil
	}

	sess := session.New(goal)

	tickets := permission.NewTicketManager(sink)
	engine := permission.NewEngine(policyFromConfig(cfg))
	plan := planner.New()
	emitter := event.NewEmitter()
	go emitter.Dispatch(ctx)

	reg := registry.New()
	onPlan := func(tasks []planner.Task) {
		emitter.Emit(event.Event{Kind: event.KindPlanUpdated, SessionID: sess.ID(), Tasks: tasks})
	}
	if err := tools.RegisterAll(reg, cfg, plan, onPlan); err != nil {
		fmt.Printf("Tool registration error: %v\n", err)
		os.Exit(1)
	}

	backend := inference.NewOpenAIBackend(cfg.Model.APIKey, cfg.Model.BaseURL, cfg.Model.Name)
	actor := inference.NewActor(backend)
	go actor.Run(ctx)

	tracer := trace.NewPublisher(traceBrokers(cfg), cfg.Trace.Topic)
	defer tracer.Close()

	emitter.Subscribe(renderEvent)
	emitter.Subscribe(approvalPrompter(tickets))

	loop, err := agent.New(cfg, agent.Deps{
		Registry: reg,
		Engine:   engine,
		Tickets:  tickets,
		Plan:     plan,
		Detector: progress.NewDetector(cfg.Detector.Window, cfg.Detector.RepeatThreshold),
		Emitter:  emitter,
		Client:   actor,
		Store:    store,
		Timeline: tl,
		Tracer:   tracer,
	})
	if err != nil {
		fmt.Printf("Setup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Goal: %s\nModel: %s (%s)\nMode: %s\n\n", goal, cfg.Model.Name, cfg.Model.BaseURL, cfg.Permissions.Mode)

	runErr := loop.Run(ctx, sess)

	fmt.Printf("\n\nSession %s: %s", sess.ID(), sess.State())
	if reason := sess.TerminalReason(); reason != "" {
		fmt.Printf(" (%s)", reason)
	}
	fmt.Printf(" after %d iterations in %s\n", sess.Iteration(), sess.Elapsed().Round(10*time.Millisecond))
	if runErr != nil {
		os.Exit(1)
	}
}

func policyFromConfig(cfg *config.Config) permission.Policy {
	maxLevel, err := permission.ParseLevel(cfg.Permissions.MaxLevel)
	if err != nil {
		fmt.Printf("Permission warning: %v (capping at read_only)\n", err)
		maxLevel = permission.ReadOnly
	}
	return permission.Policy{
		Mode:            permission.Mode(cfg.Permissions.Mode),
		Allowlist:       cfg.Permissions.Allowlist,
		MaxLevel:        maxLevel,
		ApprovalTimeout: cfg.Permissions.ApprovalTimeout,
	}
}

func traceBrokers(cfg *config.Config) []string {
	if !cfg.Trace.Enabled {
		return nil
	}
	return cfg.Trace.Brokers
}

// renderEvent prints the loop's progress as it happens.
func renderEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindTokenChunk:
		fmt.Print(ev.Text)
	case event.KindActionRequested:
		fmt.Printf("\n%s %s\n", color.YellowString("→"), ev.Request.Action)
	case event.KindActionResult:
		mark := color.GreenString("✓")
		if !ev.Result.Success {
			mark = color.RedString("✗")
		}
		fmt.Printf("%s %s (%s)\n", mark, ev.Result.Action, ev.Result.Duration.Round(time.Millisecond))
	case event.KindPlanUpdated:
		fmt.Printf("%s plan: %d tasks\n", color.CyanString("◆"), len(ev.Tasks))
	case event.KindStateChanged:
		if ev.NewState == "loop_detection_triggered" {
			fmt.Println(color.YellowString("⟳ no progress detected, nudging"))
		}
	}
}

// approvalPrompter resolves tickets from stdin. Runs on the dispatcher
// goroutine: the loop is suspended on the ticket while we read, so
// blocking here is the intended flow.
func approvalPrompter(tickets *permission.TicketManager) func(event.Event) {
	reader := bufio.NewReader(os.Stdin)
	return func(ev event.Event) {
		if ev.Kind != event.KindApprovalRequested {
			return
		}
		fmt.Printf("\n%s %s wants to run %s %v\n", color.YellowString("?"),
			"agent", ev.Request.Action, ev.Request.Arguments)
		fmt.Print("Approve? [y = once / a = for session / N = deny]: ")

		line, err := reader.ReadString('\n')
		decision := permission.Deny
		if err == nil {
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				decision = permission.Approve
			case "a", "always":
				decision = permission.ApproveForSession
			}
		}
		if err := tickets.Resolve(ev.TicketID, decision); err != nil {
			// Ticket already expired; the loop treated it as a denial.
			fmt.Printf("(%v)\n", err)
		}
	}
}
