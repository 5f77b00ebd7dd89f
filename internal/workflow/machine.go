package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Precondition messages.
const (
	MsgTransitionNotAllowed = "transition not allowed"
	MsgReviewerRequired     = "Reviewer assignment is required"
	MsgReasonRequired       = "Rejection reason is required"
)

type edge struct {
	from, to products.State
}

// Machine is the lifecycle rule table. It is built once and read concurrently.
type Machine struct {
	rules      []Rule
	byEdge     map[edge]int
	gate       *permissions.Gate
	conditions map[string]Condition
}

// NewMachine validates rules and resolves their condition names against
// conditions. A nil conditions map uses DefaultConditions.
func NewMachine(rules []Rule, gate *permissions.Gate, conditions map[string]Condition) (*Machine, error) {
	if gate == nil {
		return nil, fmt.Errorf("workflow machine requires a permission gate")
	}
	if conditions == nil {
		conditions = DefaultConditions()
	}

	m := &Machine{
		rules:      slices.Clone(rules),
		byEdge:     make(map[edge]int, len(rules)),
		gate:       gate,
		conditions: conditions,
	}
	for i, r := range m.rules {
		if _, err := products.ParseState(string(r.From)); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		if _, err := products.ParseState(string(r.To)); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		e := edge{r.From, r.To}
		if _, dup := m.byEdge[e]; dup {
			return nil, fmt.Errorf("rule %s: duplicate transition %s->%s", r.Name, r.From, r.To)
		}
		for _, c := range r.Conditions {
			if _, ok := conditions[c]; !ok {
				return nil, fmt.Errorf("rule %s: unknown condition %q", r.Name, c)
			}
		}
		m.byEdge[e] = i
	}
	return m, nil
}

// Rules returns a copy of the rule table.
func (m *Machine) Rules() []Rule {
	return slices.Clone(m.rules)
}

// Rule returns the rule for the edge from -> to.
func (m *Machine) Rule(from, to products.State) (Rule, bool) {
	i, ok := m.byEdge[edge{from, to}]
	if !ok {
		return Rule{}, false
	}
	return m.rules[i], true
}

// Automatic returns the first automatic rule leaving state.
func (m *Machine) Automatic(state products.State) (Rule, bool) {
	for _, r := range m.rules {
		if r.Automatic && r.From == state {
			return r, true
		}
	}
	return Rule{}, false
}

// ValidationInput describes one requested transition.
type ValidationInput struct {
	Record             *products.Product
	To                 products.State
	Actor              identity.Identity
	Reason             string
	AssignedReviewerID string
	// Automatic marks a follow-on transition started by the engine.
	Automatic bool
	// SkipPreconditions skips field preconditions and named conditions.
	SkipPreconditions bool
}

// Validation is the outcome of Validate.
type Validation struct {
	IsValid  bool            `json:"is_valid"`
	Errors   []outcome.Error `json:"errors"`
	Warnings []string        `json:"warnings"`
	Rule     *Rule           `json:"rule,omitempty"`
}

func (v *Validation) fail(kind outcome.Kind, msg string) {
	v.Errors = append(v.Errors, outcome.Error{Kind: kind, Message: msg})
}

// Validate checks a requested transition. A missing rule short-circuits; every
// other problem is collected.
func (m *Machine) Validate(ctx context.Context, in ValidationInput) Validation {
	v := Validation{Errors: []outcome.Error{}, Warnings: []string{}}
	from := in.Record.CurrentState()

	rule, ok := m.Rule(from, in.To)
	if !ok {
		v.fail(outcome.InvalidTransition, MsgTransitionNotAllowed)
		return v
	}
	v.Rule = &rule
	if rule.Automatic && !in.Automatic {
		v.fail(outcome.InvalidTransition, fmt.Sprintf("transition %s is automatic", rule.Name))
		return v
	}

	role := in.Actor.Role()
	if m.gate.IsSuperuser(role) {
		if rule.RequiredRole != "" && rule.RequiredRole != role {
			v.Warnings = append(v.Warnings, fmt.Sprintf("superuser %s bypassed role %s", role, rule.RequiredRole))
		}
	} else if rule.RequiredRole != "" && rule.RequiredRole != role {
		v.fail(outcome.PermissionDenied, fmt.Sprintf("role %s may not %s (requires %s)", role, rule.Name, rule.RequiredRole))
	}
	pctx := permissions.Context{ActorID: in.Actor.ActorID, TargetID: in.Record.ID.String()}
	for _, action := range rule.RequiredPermissions {
		if d := m.gate.Check(role, action, pctx); !d.Allowed {
			v.fail(outcome.PermissionDenied, d.Reason)
		}
	}

	if !in.SkipPreconditions {
		if in.To == products.Review && in.AssignedReviewerID == "" {
			v.fail(outcome.MissingPrecondition, MsgReviewerRequired)
		}
		if in.To == products.Rejected && strings.TrimSpace(in.Reason) == "" {
			v.fail(outcome.MissingPrecondition, MsgReasonRequired)
		}
		cin := ConditionInput{
			Record:             in.Record,
			To:                 in.To,
			Actor:              in.Actor,
			Reason:             in.Reason,
			AssignedReviewerID: in.AssignedReviewerID,
		}
		for _, name := range rule.Conditions {
			if err := m.runCondition(ctx, name, cin); err != nil {
				v.fail(outcome.Validation, err.Error())
			}
		}
	}

	v.IsValid = len(v.Errors) == 0
	return v
}

func (m *Machine) runCondition(ctx context.Context, name string, in ConditionInput) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("condition %s panicked: %v", name, r)
		}
	}()
	if cerr := m.conditions[name](ctx, in); cerr != nil {
		return fmt.Errorf("condition %s failed: %w", name, cerr)
	}
	return nil
}

func (m *Machine) permitted(r Rule, role permissions.Role) bool {
	if r.Automatic {
		return false
	}
	if m.gate.IsSuperuser(role) {
		return true
	}
	return r.RequiredRole == "" || r.RequiredRole == role
}

// ValidNextStates lists the targets of manual rules leaving state that role may
// take, in rule order.
func (m *Machine) ValidNextStates(state products.State, role permissions.Role) []products.State {
	next := []products.State{}
	for _, r := range m.rules {
		if r.From == state && m.permitted(r, role) {
			next = append(next, r.To)
		}
	}
	return next
}

// PreviousStates lists the sources of manual rules entering state that role may
// take, in rule order.
func (m *Machine) PreviousStates(state products.State, role permissions.Role) []products.State {
	prev := []products.State{}
	for _, r := range m.rules {
		if r.To == state && m.permitted(r, role) {
			prev = append(prev, r.From)
		}
	}
	return prev
}

// PreviewState returns the state a record in from would end in after moving to to
// and following automatic rules. It does not check that from -> to is allowed.
func (m *Machine) PreviewState(from, to products.State, maxDepth int) products.State {
	visited := map[products.State]bool{to: true}
	state := to
	for range maxDepth {
		r, ok := m.Automatic(state)
		if !ok || visited[r.To] {
			break
		}
		visited[r.To] = true
		state = r.To
	}
	return state
}
