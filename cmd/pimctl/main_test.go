package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/campaigns"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// captured is the last request seen by the fake API.
type captured struct {
	method string
	path   string
	query  string
	auth   string
	body   []byte
}

func fakeAPI(t *testing.T, status int, response any) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.auth = r.Header.Get("Authorization")
		got.body, _ = io.ReadAll(r.Body)

		if s, ok := response.(string); ok {
			w.WriteHeader(status)
			io.WriteString(w, s)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestTransition(t *testing.T) {
	id := uuid.New()
	srv, got := fakeAPI(t, http.StatusOK, workflow.Result{
		Success:   true,
		RecordID:  id,
		Rule:      "submit",
		FromState: products.Draft,
		NewState:  products.Review,
	})

	out, err := run(t, "--server", srv.URL, "--token", "tkn",
		"transition", id.String(), "review", "--reviewer", "rv-1", "--comment", "ready")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	if got.method != http.MethodPost || got.path != "/products/"+id.String()+"/transitions" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.auth != "Bearer tkn" {
		t.Errorf("authorization = %q", got.auth)
	}
	var req workflow.Request
	if err := json.Unmarshal(got.body, &req); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if req.To != products.Review || req.AssignedReviewerID != "rv-1" || req.Comment != "ready" {
		t.Errorf("body = %+v", req)
	}
	for _, want := range []string{"submit", "DRAFT", "REVIEW"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTransitionAssignPolicy(t *testing.T) {
	id := uuid.New()
	srv, got := fakeAPI(t, http.StatusOK, workflow.Result{Success: true, RecordID: id})

	if _, err := run(t, "--server", srv.URL, "transition", id.String(), "REVIEW", "--assign", "round_robin"); err != nil {
		t.Fatalf("transition: %v", err)
	}

	var req workflow.Request
	if err := json.Unmarshal(got.body, &req); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if req.Assignment == nil || req.Assignment.Policy != reviewers.RoundRobin {
		t.Errorf("assignment = %+v", req.Assignment)
	}
}

func TestTransitionRejected(t *testing.T) {
	id := uuid.New()
	srv, _ := fakeAPI(t, http.StatusBadRequest, workflow.Result{
		RecordID:  id,
		FromState: products.Review,
		Errors:    []outcome.Error{{Kind: outcome.Validation, Message: workflow.MsgReasonRequired}},
	})

	out, err := run(t, "--server", srv.URL, "transition", id.String(), "REJECTED")
	if err == nil || !strings.Contains(err.Error(), workflow.MsgReasonRequired) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "VALIDATION_ERROR") {
		t.Errorf("output missing error kind:\n%s", out)
	}
}

func TestTransitionArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad id", []string{"transition", "nope", "REVIEW"}, "invalid record id"},
		{"bad state", []string{"transition", uuid.NewString(), "ARCHIVED"}, "unknown lifecycle state"},
		{"bad output", []string{"-o", "yaml", "next-states", uuid.NewString()}, "unknown output"},
		{"no server", []string{"--server", "", "next-states", uuid.NewString()}, "server is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestNextStatesJSON(t *testing.T) {
	id := uuid.New()
	srv, got := fakeAPI(t, http.StatusOK, workflow.Options{
		RecordID: id,
		Current:  products.Draft,
		Role:     "editor",
		Next:     []products.State{products.Review},
		Previous: []products.State{products.Rejected},
	})

	out, err := run(t, "--server", srv.URL, "-o", "json", "next-states", id.String(), "--role", "editor")
	if err != nil {
		t.Fatalf("next-states: %v", err)
	}
	if got.query != "role=editor" {
		t.Errorf("query = %q", got.query)
	}

	var opts workflow.Options
	if err := json.Unmarshal([]byte(out), &opts); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(opts.Next) != 1 || opts.Next[0] != products.Review {
		t.Errorf("options = %+v", opts)
	}
}

func TestCampaignStart(t *testing.T) {
	c := campaigns.Campaign{ID: uuid.New(), Status: campaigns.Completed, DryRun: true, TotalItems: 2}
	srv, got := fakeAPI(t, http.StatusOK, outcome.OK(c))
	ids := []string{uuid.NewString(), uuid.NewString()}

	out, err := run(t, "--server", srv.URL, "campaign", "start",
		"--to", "approved", "--state", "review", "--ids", strings.Join(ids, ","), "--dry-run", "--batch-size", "10")
	if err != nil {
		t.Fatalf("campaign start: %v", err)
	}

	var cmd campaigns.StartCommand
	if err := json.Unmarshal(got.body, &cmd); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if cmd.Action.To != products.Approved || !cmd.DryRun || cmd.BatchSize != 10 {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Filter.State == nil || *cmd.Filter.State != "REVIEW" || len(cmd.Filter.IDs) != 2 {
		t.Errorf("filter = %+v", cmd.Filter)
	}
	if !strings.Contains(out, c.ID.String()) || !strings.Contains(out, "completed") {
		t.Errorf("output:\n%s", out)
	}
}

func TestCampaignStartRequiresTarget(t *testing.T) {
	if _, err := run(t, "campaign", "start"); err == nil {
		t.Fatal("expected error without --to")
	}
}

func TestCampaignListAndCancel(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, outcome.OK(map[string]any{
		"data":      []campaigns.Campaign{{ID: uuid.New(), Status: campaigns.Running}},
		"strategy":  "offset",
		"total":     1,
		"page":      1,
		"page_size": 20,
	}))

	out, err := run(t, "--server", srv.URL, "campaign", "list", "--status", "RUNNING")
	if err != nil {
		t.Fatalf("campaign list: %v", err)
	}
	if got.query != "status=running" || !strings.Contains(out, "running") {
		t.Errorf("query = %q, output:\n%s", got.query, out)
	}

	conflict, _ := fakeAPI(t, http.StatusConflict, outcome.Fail[campaigns.Campaign](campaigns.ErrFinished))
	_, err = run(t, "--server", conflict.URL, "campaign", "cancel", uuid.NewString())
	if err == nil || !strings.Contains(err.Error(), "campaign already finished") {
		t.Errorf("cancel err = %v", err)
	}
}

func TestAuditExportWritesRawBody(t *testing.T) {
	csv := "id,record_id,actor_id\n1,2,3\n"
	srv, got := fakeAPI(t, http.StatusOK, csv)

	out, err := run(t, "--server", srv.URL, "audit", "export", "--actor", "ed-1", "--state", "review")
	if err != nil {
		t.Fatalf("audit export: %v", err)
	}
	if out != csv {
		t.Errorf("output = %q", out)
	}
	for _, want := range []string{"format=csv", "actor_id=ed-1", "state=REVIEW"} {
		if !strings.Contains(got.query, want) {
			t.Errorf("query %q missing %q", got.query, want)
		}
	}
}

func TestReviewersAssign(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, reviewers.Selection{
		Reviewer:   reviewers.Profile{UserID: "rv-2"},
		Policy:     reviewers.Workload,
		Candidates: 3,
	})

	out, err := run(t, "--server", srv.URL, "reviewers", "assign", "--pool", "rv-1,rv-2")
	if err != nil {
		t.Fatalf("reviewers assign: %v", err)
	}

	var req reviewers.Request
	if err := json.Unmarshal(got.body, &req); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if req.Policy != reviewers.Workload || len(req.Pool) != 2 {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(out, "rv-2") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConfigFile(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, reviewers.Summary{UserID: "rv-1"})

	path := filepath.Join(t.TempDir(), "pimctl.yaml")
	content := "server: " + srv.URL + "\ntoken: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := run(t, "--config", path, "reviewers", "summary", "rv-1"); err != nil {
		t.Fatalf("reviewers summary: %v", err)
	}
	if got.auth != "Bearer from-file" || got.path != "/reviewers/rv-1/summary" {
		t.Errorf("request = %+v", got)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := errorMessage([]byte(`{"error":"record not found"}`)); got != "record not found" {
		t.Errorf("json = %q", got)
	}
	if got := errorMessage([]byte("bad gateway\n")); got != "bad gateway" {
		t.Errorf("raw = %q", got)
	}
}
