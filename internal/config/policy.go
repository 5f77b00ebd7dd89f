package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy models the workflow policy file. It replaces the built-in transition rules
// and role capabilities when provided.
type Policy struct {
	Rules []PolicyRule          `yaml:"rules"`
	Roles map[string]PolicyRole `yaml:"roles"`
}

// PolicyRule declares one allowed transition edge.
type PolicyRule struct {
	Name        string   `yaml:"name"`
	From        string   `yaml:"from"`
	To          string   `yaml:"to"`
	Role        string   `yaml:"role"`
	Permissions []string `yaml:"permissions"`
	Automatic   bool     `yaml:"automatic"`
	Conditions  []string `yaml:"conditions"`
	Priority    string   `yaml:"priority"`
}

// PolicyRole lists the actions a role may perform.
type PolicyRole struct {
	Description string   `yaml:"description"`
	Actions     []string `yaml:"actions"`
}

// LoadPolicy reads and validates a policy file. An empty path returns nil, nil.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return PolicyFromYAML(data)
}

// PolicyFromYAML parses and validates policy from raw YAML bytes.
func PolicyFromYAML(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid policy yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks structure only. State names, action names and condition names
// are resolved by the systems that consume the policy.
func (p *Policy) Validate() error {
	if len(p.Rules) == 0 && len(p.Roles) == 0 {
		return fmt.Errorf("policy must declare rules or roles")
	}

	names := make(map[string]bool, len(p.Rules))
	edges := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		if r.Name == "" {
			return fmt.Errorf("rules[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("rules[%d]: duplicate rule name %s", i, r.Name)
		}
		names[r.Name] = true

		if r.From == "" || r.To == "" {
			return fmt.Errorf("rule %s: from and to are required", r.Name)
		}
		if r.From == r.To {
			return fmt.Errorf("rule %s: from and to must differ", r.Name)
		}
		edge := r.From + "->" + r.To
		if edges[edge] {
			return fmt.Errorf("rule %s: duplicate transition %s", r.Name, edge)
		}
		edges[edge] = true

		if !r.Automatic && r.Role == "" {
			return fmt.Errorf("rule %s: manual rules require a role", r.Name)
		}
		switch r.Priority {
		case "", "low", "normal", "high", "critical":
		default:
			return fmt.Errorf("rule %s: unknown priority %s", r.Name, r.Priority)
		}
	}

	for name, role := range p.Roles {
		if name == "" {
			return fmt.Errorf("roles contains empty role name")
		}
		for _, action := range role.Actions {
			if action == "" {
				return fmt.Errorf("role %s has empty action", name)
			}
		}
	}
	return nil
}
