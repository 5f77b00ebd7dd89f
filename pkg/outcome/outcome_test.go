package outcome_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want outcome.Kind
	}{
		{"nil", nil, ""},
		{"direct", outcome.New(outcome.Conflict, "busy"), outcome.Conflict},
		{"wrapped", fmt.Errorf("save: %w", outcome.New(outcome.NotFound, "missing")), outcome.NotFound},
		{"with cause", outcome.Wrap(outcome.Validation, "bad", cause), outcome.Validation},
		{"unclassified", cause, outcome.Storage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcome.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := outcome.Wrap(outcome.Storage, "write audit entry", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if err.Error() != "write audit entry: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !outcome.Is(err, outcome.Storage) || outcome.Is(nil, outcome.Storage) {
		t.Error("Is() mismatch")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind outcome.Kind
		want int
	}{
		{"", http.StatusOK},
		{outcome.Validation, http.StatusBadRequest},
		{outcome.MissingPrecondition, http.StatusBadRequest},
		{outcome.Unauthenticated, http.StatusUnauthorized},
		{outcome.PermissionDenied, http.StatusForbidden},
		{outcome.NotFound, http.StatusNotFound},
		{outcome.Conflict, http.StatusConflict},
		{outcome.InvalidTransition, http.StatusUnprocessableEntity},
		{outcome.NoEligibleReviewer, http.StatusUnprocessableEntity},
		{outcome.CapacityExceeded, http.StatusRequestEntityTooLarge},
		{outcome.Storage, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := outcome.StatusFor(tt.kind); got != tt.want {
				t.Errorf("StatusFor(%q) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestResult(t *testing.T) {
	ok := outcome.OK(42)
	if !ok.Success || ok.Data == nil || *ok.Data != 42 {
		t.Errorf("OK() = %+v", ok)
	}

	fail := outcome.Fail[int](outcome.New(outcome.Conflict, "campaign already finished"))
	if fail.Success || fail.Kind != outcome.Conflict || len(fail.Errors) != 1 || fail.Data != nil {
		t.Errorf("Fail() = %+v", fail)
	}

	plain := outcome.Fail[int](errors.New("boom"))
	if plain.Kind != outcome.Storage || len(plain.Errors) != 0 || plain.Error != "boom" {
		t.Errorf("Fail(plain) = %+v", plain)
	}

	all := outcome.FailAll[int]([]outcome.Error{
		{Kind: outcome.Validation, Message: "name is required"},
		{Kind: outcome.MissingPrecondition, Message: "price is required"},
	})
	if all.Kind != outcome.Validation || all.Error != "name is required; price is required" {
		t.Errorf("FailAll() = %+v", all)
	}
}
