package cli

import (
	"testing"
	"time"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/permission"
)

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Permissions.Mode = "allowlist"
	cfg.Permissions.Allowlist = []string{"file_read", "filesystem"}
	cfg.Permissions.MaxLevel = "execute"
	cfg.Permissions.ApprovalTimeout = 30 * time.Second

	p := policyFromConfig(cfg)
	if p.Mode != permission.ModeAllowlist {
		t.Fatalf("mode: %s", p.Mode)
	}
	if p.MaxLevel != permission.Execute {
		t.Fatalf("max level: %s", p.MaxLevel)
	}
	if len(p.Allowlist) != 2 || p.ApprovalTimeout != 30*time.Second {
		t.Fatalf("policy: %+v", p)
	}
}

func TestPolicyFromConfigBadLevelFailsClosed(t *testing.T) {
	cfg := config.Default()
	cfg.Permissions.MaxLevel = "everything"
	if p := policyFromConfig(cfg); p.MaxLevel != permission.ReadOnly {
		t.Fatalf("max level: %s", p.MaxLevel)
	}
}

func TestTraceBrokersDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Trace.Brokers = []string{"localhost:9092"}
	cfg.Trace.Enabled = false
	if got := traceBrokers(cfg); got != nil {
		t.Fatalf("brokers: %v", got)
	}
	cfg.Trace.Enabled = true
	if got := traceBrokers(cfg); len(got) != 1 {
		t.Fatalf("brokers: %v", got)
	}
}
