package permissions_test

import (
	"strings"
	"testing"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
)

func newGate(t *testing.T, opts ...permissions.Option) *permissions.Gate {
	t.Helper()
	g, err := permissions.New(opts...)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g
}

func TestCheckDefaults(t *testing.T) {
	g := newGate(t)

	tests := []struct {
		role   permissions.Role
		action permissions.Action
		want   bool
	}{
		{permissions.Viewer, permissions.RecordsRead, true},
		{permissions.Viewer, permissions.RecordsTransition, false},
		{permissions.Editor, permissions.RecordsTransition, true},
		{permissions.Editor, permissions.CampaignsStart, false},
		{permissions.Reviewer, permissions.RecordsTransition, true},
		{permissions.Reviewer, permissions.ReviewersManage, false},
		{permissions.Admin, permissions.AuditExport, true},
		{permissions.Admin, permissions.CampaignsCancel, true},
		{permissions.Admin, permissions.RecordsSkipValidation, true},
		{permissions.Editor, permissions.RecordsSkipValidation, false},
		{permissions.Superadmin, permissions.ReviewersAssign, true},
		{"intern", permissions.RecordsRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			d := g.Check(tt.role, tt.action, permissions.Context{})
			if d.Allowed != tt.want {
				t.Errorf("allowed: got %v, want %v (%s)", d.Allowed, tt.want, d.Reason)
			}
			if !d.Allowed && d.Reason == "" {
				t.Error("denial should carry a reason")
			}
		})
	}
}

func TestCheckSelfService(t *testing.T) {
	g := newGate(t)

	own := g.Check(permissions.Reviewer, permissions.ReviewersManage, permissions.Context{ActorID: "r1", TargetID: "r1"})
	if !own.Allowed {
		t.Errorf("reviewer should manage own profile: %s", own.Reason)
	}

	other := g.Check(permissions.Reviewer, permissions.ReviewersManage, permissions.Context{ActorID: "r1", TargetID: "r2"})
	if other.Allowed {
		t.Error("reviewer should not manage another profile")
	}
}

func TestCustomSuperusersAndCapabilities(t *testing.T) {
	g := newGate(t,
		permissions.WithSuperusers("ops"),
		permissions.WithCapabilities(map[string][]string{
			"editor": {"records.read"},
		}),
	)

	if !g.IsSuperuser("ops") {
		t.Error("ops should be a superuser")
	}
	if g.IsSuperuser(permissions.Superadmin) {
		t.Error("superadmin should not be a superuser when others are named")
	}
	if g.Allowed(permissions.Editor, permissions.RecordsTransition, permissions.Context{}) {
		t.Error("custom table should drop editor transition")
	}
	if !g.Allowed("ops", permissions.AuditExport, permissions.Context{}) {
		t.Error("superuser should be allowed everything")
	}
}

func TestUnknownActionRejected(t *testing.T) {
	_, err := permissions.New(permissions.WithCapabilities(map[string][]string{
		"editor": {"records.delete"},
	}))
	if err == nil || !strings.Contains(err.Error(), "records.delete") {
		t.Fatalf("expected unknown action error, got %v", err)
	}
}
