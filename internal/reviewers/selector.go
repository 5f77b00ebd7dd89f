package reviewers

import (
	"cmp"
	"slices"
	"time"
)

// Policy selects how candidates are scored.
type Policy string

const (
	Workload    Policy = "WORKLOAD"
	Performance Policy = "PERFORMANCE"
	Specialty   Policy = "SPECIALTY"
	Department  Policy = "DEPARTMENT"
	RoundRobin  Policy = "ROUND_ROBIN"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case Workload, Performance, Specialty, Department, RoundRobin:
		return true
	}
	return false
}

// Request describes one assignment. Pool restricts candidates to the listed user ids
// when non-empty. RequireAvailability defaults to AVAILABLE.
type Request struct {
	Policy              Policy         `json:"policy"`
	Specialty           string         `json:"specialty,omitempty"`
	Department          string         `json:"department,omitempty"`
	Pool                []string       `json:"pool,omitempty"`
	RequireAvailability []Availability `json:"require_availability,omitempty"`
}

func (r Request) required() []Availability {
	if len(r.RequireAvailability) == 0 {
		return []Availability{Available}
	}
	return r.RequireAvailability
}

// SubstitutionKind names why the assignee differs from the scored reviewer.
type SubstitutionKind string

const (
	SubstitutionDelegation SubstitutionKind = "delegation"
	SubstitutionBackup     SubstitutionKind = "backup"
)

// Substitution records a reviewer replaced by another.
type Substitution struct {
	Kind   SubstitutionKind `json:"kind"`
	FromID string           `json:"from_id"`
	ToID   string           `json:"to_id"`
	Note   string           `json:"note,omitempty"`
}

// Selection is the outcome of Select.
type Selection struct {
	Reviewer      Profile        `json:"reviewer"`
	Policy        Policy         `json:"policy"`
	Score         float64        `json:"score"`
	Candidates    int            `json:"candidates"`
	Substitutions []Substitution `json:"substitutions,omitempty"`
}

// AssigneeID returns the user id the record should be assigned to.
func (s *Selection) AssigneeID() string {
	return s.Reviewer.UserID
}

// Lookup resolves a profile outside the candidate list, for backups and delegates.
type Lookup func(userID string) (Profile, bool)

type scored struct {
	profile Profile
	score   float64
	backup  *Substitution
}

// Select picks one reviewer from candidates under req.Policy at now.
//
// Candidates outside the pool are dropped, then candidates whose availability is not
// required are replaced by their backup when the backup qualifies. The remainder is
// scored; the highest score wins with ties broken by fewer current assignments then
// by user id. A winner with an active delegation is replaced by the delegate.
func Select(req Request, candidates []Profile, lookup Lookup, now time.Time) (*Selection, error) {
	if !req.Policy.Valid() {
		return nil, ErrUnknownPolicy
	}
	if lookup == nil {
		lookup = func(string) (Profile, bool) { return Profile{}, false }
	}

	pool := eligible(req, candidates, lookup, now)

	var ranked []scored
	for _, c := range pool {
		score, ok := scoreFor(req, c.profile, now)
		if !ok {
			continue
		}
		c.score = score
		ranked = append(ranked, c)
	}

	if len(ranked) == 0 {
		return nil, ErrNoEligible
	}

	slices.SortFunc(ranked, func(a, b scored) int {
		if req.Policy == RoundRobin {
			if c := compareRecency(a.profile.LastAssignedAt, b.profile.LastAssignedAt); c != 0 {
				return c
			}
		} else if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.profile.CurrentAssignments, b.profile.CurrentAssignments); c != 0 {
			return c
		}
		return cmp.Compare(a.profile.UserID, b.profile.UserID)
	})

	winner := ranked[0]
	sel := &Selection{
		Reviewer:   winner.profile,
		Policy:     req.Policy,
		Score:      winner.score,
		Candidates: len(ranked),
	}
	if winner.backup != nil {
		sel.Substitutions = append(sel.Substitutions, *winner.backup)
	}

	if d := winner.profile.TemporaryDelegation; d.Active(now) && d.DelegateID != winner.profile.UserID {
		if delegate, ok := lookup(d.DelegateID); ok {
			sel.Substitutions = append(sel.Substitutions, Substitution{
				Kind:   SubstitutionDelegation,
				FromID: winner.profile.UserID,
				ToID:   delegate.UserID,
				Note:   d.Note,
			})
			sel.Reviewer = delegate
		}
	}

	return sel, nil
}

func eligible(req Request, candidates []Profile, lookup Lookup, now time.Time) []scored {
	required := req.required()
	available := func(p Profile) bool {
		return slices.Contains(required, p.AvailabilityAt(now))
	}

	seen := make(map[string]bool)
	var out []scored
	add := func(s scored) {
		if seen[s.profile.UserID] {
			return
		}
		seen[s.profile.UserID] = true
		out = append(out, s)
	}

	for _, p := range candidates {
		if len(req.Pool) > 0 && !slices.Contains(req.Pool, p.UserID) {
			continue
		}
		if available(p) {
			add(scored{profile: p})
		}
	}

	// Backups are considered after every directly eligible candidate so a reviewer
	// eligible in its own right never carries a substitution.
	for _, p := range candidates {
		if len(req.Pool) > 0 && !slices.Contains(req.Pool, p.UserID) {
			continue
		}
		if available(p) || p.BackupReviewerID == nil {
			continue
		}
		backup, ok := lookup(*p.BackupReviewerID)
		if !ok || !available(backup) {
			continue
		}
		add(scored{
			profile: backup,
			backup: &Substitution{
				Kind:   SubstitutionBackup,
				FromID: p.UserID,
				ToID:   backup.UserID,
			},
		})
	}

	return out
}

// scoreFor returns the policy score of p and whether p remains a candidate.
func scoreFor(req Request, p Profile, now time.Time) (float64, bool) {
	switch req.Policy {
	case Workload:
		if p.CurrentAssignments >= p.MaxAssignments && !slices.Contains(req.required(), Busy) {
			return 0, false
		}
		return float64(p.MaxAssignments - p.CurrentAssignments), true
	case Performance:
		return p.QualityScore, true
	case Specialty:
		if !p.HasSpecialty(req.Specialty) {
			return 0, false
		}
		return 1, true
	case Department:
		if req.Department == "" || p.Department != req.Department {
			return 0, false
		}
		return 1, true
	case RoundRobin:
		if p.LastAssignedAt == nil {
			return 0, true
		}
		return now.Sub(*p.LastAssignedAt).Seconds(), true
	}
	return 0, false
}

// compareRecency orders never-assigned reviewers first, then the least recent.
func compareRecency(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
