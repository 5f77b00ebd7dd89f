// Package permissions answers whether a role may perform an action. The capability
// table is built once and never mutated, so a Gate is safe for concurrent use.
package permissions

import (
	"fmt"
	"slices"
)

// Role names an actor's role.
type Role string

const (
	Viewer     Role = "viewer"
	Editor     Role = "editor"
	Reviewer   Role = "reviewer"
	Admin      Role = "admin"
	Superadmin Role = "superadmin"
)

// Action names a guarded operation.
type Action string

const (
	RecordsRead           Action = "records.read"
	RecordsCreate         Action = "records.create"
	RecordsEdit           Action = "records.edit"
	RecordsTransition     Action = "records.transition"
	// RecordsSkipValidation lets a transition bypass preconditions and conditions.
	RecordsSkipValidation Action = "records.skip_validation"
	CampaignsRead         Action = "campaigns.read"
	CampaignsStart        Action = "campaigns.start"
	CampaignsCancel       Action = "campaigns.cancel"
	AuditRead             Action = "audit.read"
	AuditExport           Action = "audit.export"
	ReviewersRead         Action = "reviewers.read"
	ReviewersManage       Action = "reviewers.manage"
	ReviewersAssign       Action = "reviewers.assign"
)

// Actions lists every known action.
var Actions = []Action{
	RecordsRead, RecordsCreate, RecordsEdit, RecordsTransition, RecordsSkipValidation,
	CampaignsRead, CampaignsStart, CampaignsCancel,
	AuditRead, AuditExport,
	ReviewersRead, ReviewersManage, ReviewersAssign,
}

// DefaultCapabilities is the built-in role table.
func DefaultCapabilities() map[Role][]Action {
	viewer := []Action{RecordsRead, CampaignsRead, AuditRead, ReviewersRead}
	editor := append(slices.Clone(viewer), RecordsCreate, RecordsEdit, RecordsTransition)
	reviewer := append(slices.Clone(viewer), RecordsTransition)
	admin := slices.Clone(Actions)

	return map[Role][]Action{
		Viewer:   viewer,
		Editor:   editor,
		Reviewer: reviewer,
		Admin:    admin,
	}
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !slices.Contains(Actions, a) {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}
