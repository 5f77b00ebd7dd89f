package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/editlock"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/notifications"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// DefaultMaxAutomaticDepth bounds automatic follow-on transitions per execution.
const DefaultMaxAutomaticDepth = 5

// ReasonAutomatic is the reason recorded on automatic transitions.
const ReasonAutomatic = "automatic transition"

// Runtime holds the collaborators of the Executor. Reviewers may be nil when no
// reviewer directory is wired; assignment requests then fail.
type Runtime struct {
	Products  products.System
	Reviewers reviewers.System
	Guard     *editlock.Guard
	Gate      *permissions.Gate
	Notifier  notifications.Notifier
	Logger    *slog.Logger
}

// Request asks for one transition of one record.
type Request struct {
	RecordID           uuid.UUID          `json:"-"`
	To                 products.State     `json:"to"`
	Actor              identity.Identity  `json:"-"`
	Reason             string             `json:"reason,omitempty"`
	Comment            string             `json:"comment,omitempty"`
	AssignedReviewerID string             `json:"assigned_reviewer_id,omitempty"`
	Assignment         *reviewers.Request `json:"assignment,omitempty"`
	SkipValidation     bool               `json:"-"`
	Metadata           map[string]any     `json:"metadata,omitempty"`
}

// Result reports one executed transition. Automatic follow-ons are listed in
// AutomaticTransitions; Record is the record after the last committed step.
type Result struct {
	Success              bool                 `json:"success"`
	Error                string               `json:"error,omitempty"`
	Errors               []outcome.Error      `json:"errors,omitempty"`
	Warnings             []string             `json:"warnings,omitempty"`
	RecordID             uuid.UUID            `json:"record_id"`
	Rule                 string               `json:"rule,omitempty"`
	FromState            products.State       `json:"from_state,omitempty"`
	NewState             products.State       `json:"new_state,omitempty"`
	Automatic            bool                 `json:"automatic,omitempty"`
	AuditEntry           *audit.Entry         `json:"audit_entry,omitempty"`
	AutomaticTransitions []Result             `json:"automatic_transitions,omitempty"`
	Record               *products.Product    `json:"record,omitempty"`
	Selection            *reviewers.Selection `json:"selection,omitempty"`
}

// Kind returns the kind of the first error, or "" on success.
func (r Result) Kind() outcome.Kind {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Kind
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return outcome.New(r.Kind(), r.Error)
}

func (r *Result) fail(errs ...outcome.Error) Result {
	r.Success = false
	r.Errors = errs
	r.Error = outcome.Join(errs)
	return *r
}

func (r *Result) failErr(err error) Result {
	return r.fail(outcome.Error{Kind: outcome.KindOf(err), Message: err.Error()})
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAutomaticDepth bounds automatic follow-on transitions.
func WithMaxAutomaticDepth(n int) Option {
	return func(x *Executor) {
		if n > 0 {
			x.maxDepth = n
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(x *Executor) { x.now = now }
}

// Executor applies transitions to records.
type Executor struct {
	machine  *Machine
	rt       Runtime
	logger   *slog.Logger
	maxDepth int
	now      func() time.Time
}

func NewExecutor(machine *Machine, rt Runtime, opts ...Option) *Executor {
	if rt.Notifier == nil {
		rt.Notifier = notifications.Nop
	}
	x := &Executor{
		machine:  machine,
		rt:       rt,
		logger:   rt.Logger.With("system", "workflow"),
		maxDepth: DefaultMaxAutomaticDepth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Machine returns the rule table the executor validates against.
func (x *Executor) Machine() *Machine {
	return x.machine
}

// MaxAutomaticDepth returns the follow-on bound.
func (x *Executor) MaxAutomaticDepth() int {
	return x.maxDepth
}

func (x *Executor) authorize(req Request) error {
	if !req.Actor.Valid() {
		return outcome.New(outcome.Unauthenticated, identity.ErrMissing.Error())
	}
	actions := []permissions.Action{permissions.RecordsTransition}
	if req.SkipValidation {
		actions = append(actions, permissions.RecordsSkipValidation)
	}
	pctx := permissions.Context{ActorID: req.Actor.ActorID, TargetID: req.RecordID.String()}
	for _, action := range actions {
		if d := x.rt.Gate.Check(req.Actor.Role(), action, pctx); !d.Allowed {
			return outcome.New(outcome.PermissionDenied, d.Reason)
		}
	}
	return nil
}

// Execute runs one requested transition and any automatic follow-ons. Failures are
// reported in the Result, never panicked.
func (x *Executor) Execute(ctx context.Context, req Request) (res Result) {
	res = Result{RecordID: req.RecordID}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("transition panicked", "id", req.RecordID, "panic", r)
			res.fail(outcome.Error{Kind: outcome.Storage, Message: fmt.Sprintf("transition panicked: %v", r)})
		}
	}()

	if err := x.authorize(req); err != nil {
		return res.failErr(err)
	}

	if x.rt.Guard != nil {
		release, err := x.rt.Guard.Acquire(req.RecordID, req.Actor)
		if err != nil {
			return res.failErr(err)
		}
		defer release()
	}

	rec, err := x.rt.Products.Find(ctx, req.RecordID)
	if err != nil {
		return res.failErr(err)
	}

	res = x.step(ctx, rec, req, false)
	if res.Success {
		x.follow(ctx, &res, req.Actor)
	}
	return res
}

// follow runs automatic rules from the committed state until none applies, the
// depth bound is reached or a state repeats.
func (x *Executor) follow(ctx context.Context, res *Result, actor identity.Identity) {
	visited := map[products.State]bool{res.NewState: true}
	rec := res.Record

	for depth := 0; ; depth++ {
		from := rec.CurrentState()
		rule, ok := x.machine.Automatic(from)
		if !ok {
			return
		}

		stop := Result{RecordID: rec.ID, Rule: rule.Name, FromState: from, Automatic: true}
		switch {
		case depth >= x.maxDepth:
			msg := fmt.Sprintf("automatic transition depth %d reached at %s", x.maxDepth, from)
			res.AutomaticTransitions = append(res.AutomaticTransitions, stop.fail(outcome.Error{Kind: outcome.InvalidTransition, Message: msg}))
			return
		case visited[rule.To]:
			msg := fmt.Sprintf("automatic transition %s revisits %s", rule.Name, rule.To)
			res.AutomaticTransitions = append(res.AutomaticTransitions, stop.fail(outcome.Error{Kind: outcome.InvalidTransition, Message: msg}))
			return
		}
		visited[rule.To] = true

		step := x.step(ctx, rec, Request{
			RecordID: rec.ID,
			To:       rule.To,
			Actor:    actor,
			Reason:   ReasonAutomatic,
			Metadata: map[string]any{"automatic": true},
		}, true)
		res.AutomaticTransitions = append(res.AutomaticTransitions, step)
		if !step.Success {
			return
		}
		rec = step.Record
		res.Record = rec
	}
}

// step validates, applies and commits a single edge.
func (x *Executor) step(ctx context.Context, rec *products.Product, req Request, automatic bool) Result {
	from := rec.CurrentState()
	res := Result{RecordID: rec.ID, FromState: from, Automatic: automatic}

	reviewerID, sel, err := x.reviewer(ctx, rec, req)
	if err != nil {
		return res.failErr(err)
	}
	res.Selection = sel

	v := x.machine.Validate(ctx, ValidationInput{
		Record:             rec,
		To:                 req.To,
		Actor:              req.Actor,
		Reason:             req.Reason,
		AssignedReviewerID: reviewerID,
		Automatic:          automatic,
		SkipPreconditions:  req.SkipValidation,
	})
	res.Warnings = v.Warnings
	if v.Rule != nil {
		res.Rule = v.Rule.Name
	}
	if !v.IsValid {
		return res.fail(v.Errors...)
	}

	next, entry := x.apply(rec, *v.Rule, req, reviewerID, sel)
	saved, err := x.rt.Products.Commit(ctx, next, entry)
	if err != nil {
		x.logger.Error("transition commit failed", "id", rec.ID, "rule", v.Rule.Name, "error", err)
		return res.failErr(err)
	}

	res.Success = true
	res.NewState = v.Rule.To
	res.AuditEntry = entry
	res.Record = saved
	x.afterCommit(ctx, rec, saved, *v.Rule, reviewerID, req.Actor, automatic)
	return res
}

// reviewer resolves the assignee for a transition into REVIEW: the named reviewer,
// then the assignment policy, then the reviewer already on the record.
func (x *Executor) reviewer(ctx context.Context, rec *products.Product, req Request) (string, *reviewers.Selection, error) {
	if req.To != products.Review || req.AssignedReviewerID != "" || req.Assignment == nil {
		return currentReviewer(rec, req), nil, nil
	}
	if x.rt.Reviewers == nil {
		return "", nil, reviewers.ErrNoEligible
	}
	sel, err := x.rt.Reviewers.Pick(ctx, *req.Assignment)
	if err != nil {
		return "", nil, err
	}
	return sel.AssigneeID(), sel, nil
}

func currentReviewer(rec *products.Product, req Request) string {
	if req.AssignedReviewerID != "" || req.To != products.Review || rec.AssignedReviewerID == nil {
		return req.AssignedReviewerID
	}
	return *rec.AssignedReviewerID
}

// apply prepares the mutated copy of rec and its audit entry.
func (x *Executor) apply(
	rec *products.Product,
	rule Rule,
	req Request,
	reviewerID string,
	sel *reviewers.Selection,
) (*products.Product, *audit.Entry) {
	now := x.now().UTC()
	from := rec.CurrentState()
	actor := req.Actor.ActorID
	reason := optional(req.Reason)
	comment := optional(req.Comment)

	next := rec.Clone()
	next.Enter(products.HistoryEntry{
		State:     rule.To,
		Timestamp: now,
		ActorID:   actor,
		Reason:    reason,
		Comment:   comment,
	})

	changes := []audit.FieldChange{
		audit.Change("lifecycleState", string(from), string(rule.To), "string"),
	}

	switch rule.To {
	case products.Review:
		next.SubmittedBy = &actor
		next.SubmittedAt = &now
		if reviewerID != "" && value(rec.AssignedReviewerID) != reviewerID {
			changes = append(changes, audit.Change("assignedReviewerId", value(rec.AssignedReviewerID), reviewerID, "string"))
			next.AssignedReviewerID = &reviewerID
		}
	case products.Approved:
		next.ReviewedBy = &actor
		next.ReviewedAt = &now
	case products.Rejected:
		next.ReviewedBy = &actor
		next.ReviewedAt = &now
		if reason != nil {
			changes = append(changes, audit.Change("rejectionReason", value(rec.RejectionReason), *reason, "string"))
		}
		next.RejectionReason = optional(req.Reason)
	case products.Published:
		next.PublishedBy = &actor
		next.PublishedAt = &now
	}
	if from == products.Rejected && rule.To == products.Draft && rec.RejectionReason != nil {
		changes = append(changes, audit.Change("rejectionReason", *rec.RejectionReason, nil, "string"))
		next.RejectionReason = nil
	}

	metadata := make(map[string]any, len(req.Metadata)+4)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["rule"] = rule.Name
	metadata["from"] = string(from)
	if sel != nil {
		metadata["assignment_policy"] = string(sel.Policy)
		if len(sel.Substitutions) > 0 {
			metadata["substitutions"] = sel.Substitutions
		}
	}

	entry := &audit.Entry{
		RecordID:       rec.ID,
		ActorID:        actor,
		ActorRole:      req.Actor.ActorRole,
		ActorName:      req.Actor.DisplayName(),
		Action:         rule.Name,
		FieldChanges:   changes,
		Reason:         reason,
		Comment:        comment,
		ResultingState: string(rule.To),
		Priority:       rule.Priority,
		Metadata:       metadata,
	}
	return next, entry
}

// afterCommit runs reviewer bookkeeping and notification. Failures are logged.
func (x *Executor) afterCommit(
	ctx context.Context,
	before, after *products.Product,
	rule Rule,
	reviewerID string,
	actor identity.Identity,
	automatic bool,
) {
	if x.rt.Reviewers != nil {
		if rule.To == products.Review && reviewerID != "" {
			if err := x.rt.Reviewers.RecordAssignment(ctx, reviewerID); err != nil {
				x.logger.Warn("record assignment failed", "id", after.ID, "reviewer", reviewerID, "error", err)
			} else {
				x.notify(ctx, notifications.Event{
					Type:     notifications.TypeReviewerAssigned,
					RecordID: &after.ID,
					ActorID:  actor.ActorID,
					Data:     map[string]any{"reviewer_id": reviewerID},
				})
			}
		}
		decided := rule.To == products.Approved || rule.To == products.Rejected
		if decided && rule.From == products.Review && before.AssignedReviewerID != nil {
			id := *before.AssignedReviewerID
			if err := x.rt.Reviewers.RecordReview(ctx, id, rule.To == products.Approved); err != nil {
				x.logger.Warn("record review failed", "id", after.ID, "reviewer", id, "error", err)
			}
		}
	}

	x.notify(ctx, notifications.Event{
		Type:     notifications.TypeTransition,
		RecordID: &after.ID,
		ActorID:  actor.ActorID,
		From:     string(rule.From),
		To:       string(rule.To),
		Data:     map[string]any{"rule": rule.Name, "automatic": automatic},
	})
}

func (x *Executor) notify(ctx context.Context, e notifications.Event) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("notifier panicked", "type", e.Type, "panic", r)
		}
	}()
	x.rt.Notifier.Notify(ctx, e)
}

// Check runs validation for req against the stored record without mutating it.
func (x *Executor) Check(ctx context.Context, req Request) (Validation, error) {
	if err := x.authorize(req); err != nil {
		return Validation{}, err
	}
	rec, err := x.rt.Products.Find(ctx, req.RecordID)
	if err != nil {
		return Validation{}, err
	}
	reviewerID, _, err := x.reviewer(ctx, rec, req)
	if err != nil {
		return Validation{}, err
	}
	return x.machine.Validate(ctx, ValidationInput{
		Record:             rec,
		To:                 req.To,
		Actor:              req.Actor,
		Reason:             req.Reason,
		AssignedReviewerID: reviewerID,
		SkipPreconditions:  req.SkipValidation,
	}), nil
}

// Preview validates req against rec and returns the state the record would end
// in. An invalid request leaves the record in its current state.
func (x *Executor) Preview(ctx context.Context, rec *products.Product, req Request) (products.State, Validation) {
	from := rec.CurrentState()
	v := x.machine.Validate(ctx, ValidationInput{
		Record:             rec,
		To:                 req.To,
		Actor:              req.Actor,
		Reason:             req.Reason,
		AssignedReviewerID: currentReviewer(rec, req),
		SkipPreconditions:  req.SkipValidation,
	})
	if !v.IsValid {
		return from, v
	}
	return x.machine.PreviewState(from, req.To, x.maxDepth), v
}

// Options lists the states a role may move a record to and from.
type Options struct {
	RecordID uuid.UUID        `json:"record_id"`
	Current  products.State   `json:"current"`
	Role     permissions.Role `json:"role"`
	Next     []products.State `json:"next"`
	Previous []products.State `json:"previous"`
}

// Options reports next and previous states for the record under role.
func (x *Executor) Options(ctx context.Context, recordID uuid.UUID, role permissions.Role) (*Options, error) {
	rec, err := x.rt.Products.Find(ctx, recordID)
	if err != nil {
		return nil, err
	}
	current := rec.CurrentState()
	return &Options{
		RecordID: rec.ID,
		Current:  current,
		Role:     role,
		Next:     x.machine.ValidNextStates(current, role),
		Previous: x.machine.PreviousStates(current, role),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
