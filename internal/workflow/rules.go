// Package workflow implements the lifecycle state machine and the transition
// executor. The Machine holds the declarative rule list and validates requested
// transitions; the Executor applies them to records, writes the audit entry in the
// same transaction and runs automatic follow-on rules.
package workflow

import (
	"fmt"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
)

// Rule is one allowed edge of the lifecycle graph. An empty RequiredRole places no
// role restriction on the rule.
type Rule struct {
	Name                string               `json:"name"`
	From                products.State       `json:"from"`
	To                  products.State       `json:"to"`
	RequiredRole        permissions.Role     `json:"required_role,omitempty"`
	RequiredPermissions []permissions.Action `json:"required_permissions,omitempty"`
	Automatic           bool                 `json:"is_automatic"`
	Conditions          []string             `json:"conditions,omitempty"`
	Priority            audit.Priority       `json:"priority"`
}

// DefaultRules returns the built-in lifecycle policy.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "submit", From: products.Draft, To: products.Review, RequiredRole: permissions.Editor, Priority: audit.PriorityNormal},
		{Name: "approve", From: products.Review, To: products.Approved, RequiredRole: permissions.Reviewer, Priority: audit.PriorityNormal},
		{Name: "reject", From: products.Review, To: products.Rejected, RequiredRole: permissions.Reviewer, Priority: audit.PriorityHigh},
		{Name: "publish", From: products.Approved, To: products.Published, RequiredRole: permissions.Admin, Priority: audit.PriorityHigh},
		{Name: "revert", From: products.Rejected, To: products.Draft, Automatic: true, Priority: audit.PriorityLow},
	}
}

// RulesFromPolicy converts policy file rules, resolving state, action and priority
// names. A policy without rules yields the default rules.
func RulesFromPolicy(p *config.Policy) ([]Rule, error) {
	if p == nil || len(p.Rules) == 0 {
		return DefaultRules(), nil
	}

	rules := make([]Rule, 0, len(p.Rules))
	for _, pr := range p.Rules {
		from, err := products.ParseState(pr.From)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", pr.Name, err)
		}
		to, err := products.ParseState(pr.To)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", pr.Name, err)
		}
		priority, ok := audit.ParsePriority(pr.Priority)
		if !ok {
			return nil, fmt.Errorf("rule %s: unknown priority %q", pr.Name, pr.Priority)
		}

		actions := make([]permissions.Action, 0, len(pr.Permissions))
		for _, name := range pr.Permissions {
			a, err := permissions.ParseAction(name)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", pr.Name, err)
			}
			actions = append(actions, a)
		}

		rules = append(rules, Rule{
			Name:                pr.Name,
			From:                from,
			To:                  to,
			RequiredRole:        permissions.Role(pr.Role),
			RequiredPermissions: actions,
			Automatic:           pr.Automatic,
			Conditions:          pr.Conditions,
			Priority:            priority,
		})
	}
	return rules, nil
}
