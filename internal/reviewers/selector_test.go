package reviewers_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func profile(id string, current, max int) reviewers.Profile {
	return reviewers.Profile{
		UserID:             id,
		Availability:       reviewers.Available,
		CurrentAssignments: current,
		MaxAssignments:     max,
	}
}

func directory(profiles ...reviewers.Profile) reviewers.Lookup {
	byID := make(map[string]reviewers.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}
	return func(id string) (reviewers.Profile, bool) {
		p, ok := byID[id]
		return p, ok
	}
}

func ptr[T any](v T) *T { return &v }

func TestSelectWorkloadPicksMostHeadroom(t *testing.T) {
	candidates := []reviewers.Profile{profile("A", 8, 10), profile("B", 2, 10)}

	sel, err := reviewers.Select(reviewers.Request{Policy: reviewers.Workload}, candidates, nil, now)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.AssigneeID() != "B" || sel.Score != 8 {
		t.Errorf("got %s with score %v, want B with 8", sel.AssigneeID(), sel.Score)
	}
}

func TestSelectDelegationSubstitutes(t *testing.T) {
	x := profile("X", 0, 10)
	x.TemporaryDelegation = &reviewers.Delegation{
		DelegateID: "Y",
		StartAt:    now.Add(-time.Hour),
		EndAt:      now.Add(time.Hour),
		Note:       "conference",
	}
	y := profile("Y", 4, 10)

	sel, err := reviewers.Select(
		reviewers.Request{Policy: reviewers.Workload, Pool: []string{"X"}},
		[]reviewers.Profile{x},
		directory(x, y),
		now,
	)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if sel.AssigneeID() != "Y" {
		t.Fatalf("assignee: got %s, want Y", sel.AssigneeID())
	}
	want := reviewers.Substitution{Kind: reviewers.SubstitutionDelegation, FromID: "X", ToID: "Y", Note: "conference"}
	if len(sel.Substitutions) != 1 || sel.Substitutions[0] != want {
		t.Errorf("substitutions: %+v", sel.Substitutions)
	}
}

func TestSelectIgnoresInactiveDelegation(t *testing.T) {
	x := profile("X", 0, 10)
	x.TemporaryDelegation = &reviewers.Delegation{
		DelegateID: "Y",
		StartAt:    now.Add(time.Hour),
		EndAt:      now.Add(2 * time.Hour),
	}

	sel, err := reviewers.Select(reviewers.Request{Policy: reviewers.Workload}, []reviewers.Profile{x}, directory(x, profile("Y", 0, 10)), now)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.AssigneeID() != "X" || len(sel.Substitutions) != 0 {
		t.Errorf("got %s with %+v", sel.AssigneeID(), sel.Substitutions)
	}
}

func TestSelectEmptyPool(t *testing.T) {
	away := profile("A", 0, 10)
	away.Availability = reviewers.Away
	full := profile("F", 10, 10)

	tests := []struct {
		name       string
		req        reviewers.Request
		candidates []reviewers.Profile
	}{
		{"no candidates", reviewers.Request{Policy: reviewers.Workload}, nil},
		{"unavailable", reviewers.Request{Policy: reviewers.Performance}, []reviewers.Profile{away}},
		{"at capacity", reviewers.Request{Policy: reviewers.Workload}, []reviewers.Profile{full}},
		{"specialty missing", reviewers.Request{Policy: reviewers.Specialty, Specialty: "textiles"}, []reviewers.Profile{profile("B", 0, 10)}},
		{"department mismatch", reviewers.Request{Policy: reviewers.Department, Department: "food"}, []reviewers.Profile{profile("B", 0, 10)}},
		{"outside pool", reviewers.Request{Policy: reviewers.Workload, Pool: []string{"Z"}}, []reviewers.Profile{profile("B", 0, 10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reviewers.Select(tt.req, tt.candidates, nil, now)
			if !errors.Is(err, reviewers.ErrNoEligible) {
				t.Fatalf("expected ErrNoEligible, got %v", err)
			}
			if outcome.KindOf(err) != outcome.NoEligibleReviewer {
				t.Errorf("kind: got %s", outcome.KindOf(err))
			}
		})
	}
}

func TestSelectWorkloadAllowsFullWhenBusyAccepted(t *testing.T) {
	full := profile("F", 10, 10)

	sel, err := reviewers.Select(reviewers.Request{
		Policy:              reviewers.Workload,
		RequireAvailability: []reviewers.Availability{reviewers.Available, reviewers.Busy},
	}, []reviewers.Profile{full}, nil, now)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.AssigneeID() != "F" {
		t.Errorf("assignee: got %s", sel.AssigneeID())
	}
}

func TestSelectPolicies(t *testing.T) {
	a := profile("A", 3, 10)
	a.QualityScore, a.Department, a.Specialties = 4.2, "hardware", []string{"tools"}
	a.LastAssignedAt = ptr(now.Add(-time.Hour))

	b := profile("B", 1, 10)
	b.QualityScore, b.Department, b.Specialties = 4.8, "food", []string{"dairy"}
	b.LastAssignedAt = ptr(now.Add(-time.Minute))

	c := profile("C", 5, 10)
	c.QualityScore, c.Department = 3.0, "hardware"

	candidates := []reviewers.Profile{a, b, c}

	tests := []struct {
		name string
		req  reviewers.Request
		want string
	}{
		{"performance", reviewers.Request{Policy: reviewers.Performance}, "B"},
		{"specialty", reviewers.Request{Policy: reviewers.Specialty, Specialty: "tools"}, "A"},
		{"department tie breaks on assignments", reviewers.Request{Policy: reviewers.Department, Department: "hardware"}, "A"},
		{"round robin never assigned first", reviewers.Request{Policy: reviewers.RoundRobin}, "C"},
		{"round robin least recent", reviewers.Request{Policy: reviewers.RoundRobin, Pool: []string{"A", "B"}}, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := reviewers.Select(tt.req, candidates, nil, now)
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if sel.AssigneeID() != tt.want {
				t.Errorf("got %s, want %s", sel.AssigneeID(), tt.want)
			}
		})
	}
}

func TestSelectTieBreaksByUserID(t *testing.T) {
	candidates := []reviewers.Profile{profile("m", 2, 5), profile("k", 2, 5)}

	sel, err := reviewers.Select(reviewers.Request{Policy: reviewers.Workload}, candidates, nil, now)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.AssigneeID() != "k" {
		t.Errorf("got %s, want k", sel.AssigneeID())
	}
}

func TestSelectBackupForUnavailable(t *testing.T) {
	a := profile("A", 0, 10)
	a.Availability = reviewers.Vacation
	a.BackupReviewerID = ptr("Z")
	z := profile("Z", 6, 10)

	sel, err := reviewers.Select(
		reviewers.Request{Policy: reviewers.Workload, Pool: []string{"A"}},
		[]reviewers.Profile{a},
		directory(a, z),
		now,
	)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.AssigneeID() != "Z" {
		t.Fatalf("assignee: got %s, want Z", sel.AssigneeID())
	}
	if len(sel.Substitutions) != 1 || sel.Substitutions[0].Kind != reviewers.SubstitutionBackup {
		t.Errorf("substitutions: %+v", sel.Substitutions)
	}
}

func TestSelectScheduledAvailability(t *testing.T) {
	a := profile("A", 0, 10)
	a.ScheduledAvailability = &reviewers.Window{
		Status:  reviewers.Vacation,
		StartAt: now.Add(-time.Hour),
		EndAt:   now.Add(time.Hour),
	}

	if _, err := reviewers.Select(reviewers.Request{Policy: reviewers.Workload}, []reviewers.Profile{a}, nil, now); !errors.Is(err, reviewers.ErrNoEligible) {
		t.Fatalf("expected ErrNoEligible during scheduled vacation, got %v", err)
	}

	later := now.Add(2 * time.Hour)
	if _, err := reviewers.Select(reviewers.Request{Policy: reviewers.Workload}, []reviewers.Profile{a}, nil, later); err != nil {
		t.Fatalf("select after window: %v", err)
	}
}

func TestSelectUnknownPolicy(t *testing.T) {
	_, err := reviewers.Select(reviewers.Request{Policy: "RANDOM"}, []reviewers.Profile{profile("A", 0, 1)}, nil, now)
	if !errors.Is(err, reviewers.ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	p := profile("A", 12, 10)
	p.ReviewsCompleted, p.Approvals, p.QualityScore = 8, 6, 4.5
	p.TemporaryDelegation = &reviewers.Delegation{DelegateID: "B", StartAt: now.Add(-time.Minute), EndAt: now.Add(time.Minute)}

	s := reviewers.Summarize(p, now)
	if s.CapacityPercent != 120 {
		t.Errorf("capacity: got %v", s.CapacityPercent)
	}
	if s.ApprovalRate != 75 {
		t.Errorf("approval rate: got %v", s.ApprovalRate)
	}
	if !s.OverCapacity {
		t.Error("expected over capacity")
	}
	if s.ActiveDelegation == nil {
		t.Error("expected active delegation")
	}

	empty := reviewers.Summarize(profile("B", 0, 0), now)
	if empty.CapacityPercent != 0 || empty.ApprovalRate != 0 {
		t.Errorf("zero denominators: %+v", empty)
	}
}
