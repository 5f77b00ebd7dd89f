package permissions

import "fmt"

// Context carries the actor and target of a check for self-service rules.
type Context struct {
	ActorID  string
	TargetID string
}

// Decision is the answer of a check. Reason explains a denial.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate evaluates role capabilities.
type Gate struct {
	capabilities map[Role]map[Action]bool
	superusers   map[Role]bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithSuperusers marks roles that are allowed every action.
func WithSuperusers(roles ...string) Option {
	return func(g *Gate) {
		for _, r := range roles {
			g.superusers[Role(r)] = true
		}
	}
}

// WithCapabilities replaces the capability table. Unknown actions are rejected by New.
func WithCapabilities(table map[string][]string) Option {
	return func(g *Gate) {
		g.capabilities = make(map[Role]map[Action]bool, len(table))
		for role, actions := range table {
			set := make(map[Action]bool, len(actions))
			for _, a := range actions {
				set[Action(a)] = true
			}
			g.capabilities[Role(role)] = set
		}
	}
}

// New builds a Gate from DefaultCapabilities and the given options.
// Superadmin is a superuser unless WithSuperusers names others.
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		capabilities: make(map[Role]map[Action]bool),
		superusers:   make(map[Role]bool),
	}
	for role, actions := range DefaultCapabilities() {
		set := make(map[Action]bool, len(actions))
		for _, a := range actions {
			set[a] = true
		}
		g.capabilities[role] = set
	}

	for _, opt := range opts {
		opt(g)
	}
	if len(g.superusers) == 0 {
		g.superusers[Superadmin] = true
	}

	for role, set := range g.capabilities {
		for a := range set {
			if _, err := ParseAction(string(a)); err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
		}
	}
	return g, nil
}

// IsSuperuser reports whether role bypasses every check.
func (g *Gate) IsSuperuser(role Role) bool {
	return g.superusers[role]
}

// Check decides whether role may perform action. A reviewer may always manage
// their own profile.
func (g *Gate) Check(role Role, action Action, ctx Context) Decision {
	if g.superusers[role] {
		return Decision{Allowed: true}
	}
	if g.capabilities[role][action] {
		return Decision{Allowed: true}
	}
	if action == ReviewersManage && ctx.ActorID != "" && ctx.ActorID == ctx.TargetID {
		return Decision{Allowed: true}
	}
	if _, known := g.capabilities[role]; !known {
		return Decision{Reason: fmt.Sprintf("unknown role %q", role)}
	}
	return Decision{Reason: fmt.Sprintf("role %s may not %s", role, action)}
}

// Allowed is Check reduced to its boolean.
func (g *Gate) Allowed(role Role, action Action, ctx Context) bool {
	return g.Check(role, action, ctx).Allowed
}
