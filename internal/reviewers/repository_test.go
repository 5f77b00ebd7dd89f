package reviewers_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

var columns = []string{
	"user_id", "display_name", "availability", "scheduled_status", "scheduled_start",
	"scheduled_end", "current_assignments", "max_assignments", "quality_score", "rating",
	"reviews_completed", "approvals", "department", "specialties", "backup_reviewer_id", "delegate_id",
	"delegation_start", "delegation_end", "delegation_note", "last_assigned_at", "created_at", "updated_at",
}

var pageCfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func addProfile(rows *sqlmock.Rows, id string, current, max int, delegate any) *sqlmock.Rows {
	var start, end any
	if delegate != nil {
		start, end = time.Now().Add(-time.Hour), time.Now().Add(time.Hour)
	}
	ts := time.Now()
	return rows.AddRow(
		id, "Reviewer "+id, "AVAILABLE", nil, nil,
		nil, current, max, 4.0, 4.5,
		0, 0, "hardware", []byte(`["tools"]`), nil, delegate,
		start, end, nil, nil, ts, ts,
	)
}

func TestRegisterDefaults(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	mock.ExpectQuery("INSERT INTO reviewers").
		WithArgs("r-1", "Rae", "AVAILABLE", reviewers.DefaultMaxAssignments, 0.0, 0.0, "hardware", []byte(`[]`)).
		WillReturnRows(addProfile(sqlmock.NewRows(columns), "r-1", 0, 10, nil))

	p, err := sys.Register(context.Background(), reviewers.RegisterCommand{UserID: "r-1", DisplayName: "Rae", Department: "hardware"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.MaxAssignments != 10 || len(p.Specialties) != 1 || p.Specialties[0] != "tools" {
		t.Errorf("profile: %+v", p)
	}
}

func TestSetAvailabilityValidates(t *testing.T) {
	db, _ := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	start := time.Now()
	end := start.Add(-time.Hour)

	tests := []struct {
		name string
		cmd  reviewers.AvailabilityCommand
	}{
		{"unknown status", reviewers.AvailabilityCommand{Status: "SICK"}},
		{"half window", reviewers.AvailabilityCommand{Status: reviewers.Away, StartAt: &start}},
		{"inverted window", reviewers.AvailabilityCommand{Status: reviewers.Away, StartAt: &start, EndAt: &end}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sys.SetAvailability(context.Background(), "r-1", tt.cmd); !errors.Is(err, reviewers.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestSetAvailabilityClearsSchedule(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	mock.ExpectQuery("UPDATE reviewers SET availability = \\$2, scheduled_status = NULL").
		WithArgs("r-1", "BUSY").
		WillReturnRows(addProfile(sqlmock.NewRows(columns), "r-1", 0, 10, nil))

	if _, err := sys.SetAvailability(context.Background(), "r-1", reviewers.AvailabilityCommand{Status: reviewers.Busy}); err != nil {
		t.Fatalf("set availability: %v", err)
	}
}

func TestSetTemporaryDelegationRejectsSelf(t *testing.T) {
	db, _ := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	_, err := sys.SetTemporaryDelegation(context.Background(), "r-1", &reviewers.Delegation{
		DelegateID: "r-1",
		StartAt:    time.Now(),
		EndAt:      time.Now().Add(time.Hour),
	})
	if !errors.Is(err, reviewers.ErrSelfSubstitution) {
		t.Fatalf("expected ErrSelfSubstitution, got %v", err)
	}
}

func TestSummaryNotFound(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	mock.ExpectQuery("FROM public.reviewers r WHERE r.user_id = \\$1").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := sys.Summary(context.Background(), "ghost"); !errors.Is(err, reviewers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignFollowsDelegation(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	mock.ExpectQuery("WHERE r.user_id IN \\(\\$1\\) ORDER BY r.user_id DESC LIMIT 500").
		WithArgs("X").
		WillReturnRows(addProfile(sqlmock.NewRows(columns), "X", 1, 10, "Y"))
	mock.ExpectQuery("WHERE r.user_id = \\$1").
		WithArgs("Y").
		WillReturnRows(addProfile(sqlmock.NewRows(columns), "Y", 3, 10, nil))
	mock.ExpectExec("UPDATE reviewers\\s+SET current_assignments = current_assignments \\+ 1").
		WithArgs("Y", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sel, err := sys.Assign(context.Background(), reviewers.Request{Policy: reviewers.Workload, Pool: []string{"X"}})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if sel.AssigneeID() != "Y" || sel.Reviewer.CurrentAssignments != 4 {
		t.Errorf("selection: %+v", sel)
	}
}

func TestPickLoadsWholeDirectory(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	first := sqlmock.NewRows(columns)
	for i := range 500 {
		addProfile(first, fmt.Sprintf("u-%04d", 1000-i), 10, 10, nil)
	}
	mock.ExpectQuery("FROM public.reviewers r ORDER BY r.user_id DESC LIMIT 500").
		WillReturnRows(first)
	mock.ExpectQuery("WHERE r.user_id < \\$1 ORDER BY r.user_id DESC LIMIT 500").
		WithArgs("u-0501").
		WillReturnRows(addProfile(sqlmock.NewRows(columns), "u-0007", 2, 10, nil))

	sel, err := sys.Pick(context.Background(), reviewers.Request{Policy: reviewers.Workload})
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if sel.AssigneeID() != "u-0007" || sel.Candidates != 1 {
		t.Errorf("selection: %s of %d candidates", sel.AssigneeID(), sel.Candidates)
	}
}

func TestRecordReview(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	mock.ExpectExec("approvals = approvals \\+ \\$2").
		WithArgs("r-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("approvals = approvals \\+ \\$2").
		WithArgs("ghost", 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := sys.RecordReview(context.Background(), "r-1", true); err != nil {
		t.Fatalf("record review: %v", err)
	}
	if err := sys.RecordReview(context.Background(), "ghost", false); !errors.Is(err, reviewers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandlerSelfServiceCapacity(t *testing.T) {
	db, mock := newMock(t)
	sys := reviewers.New(db, discard(), pageCfg)

	gate, err := permissions.New()
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler(gate, 1<<20).Routes())

	mock.ExpectQuery("UPDATE reviewers SET max_assignments = \\$2").
		WithArgs("r-1", 6).
		WillReturnRows(addProfile(sqlmock.NewRows(columns), "r-1", 0, 6, nil))

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"own profile", "r-1", http.StatusOK},
		{"other profile", "r-2", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/reviewers/"+tt.target+"/capacity", strings.NewReader(`{"max_assignments":6}`))
			req = req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{ActorID: "r-1", ActorRole: "reviewer"}))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d, body %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
