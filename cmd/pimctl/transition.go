package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

func parseRecord(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}

func parseState(arg string) (products.State, error) {
	return products.ParseState(strings.ToUpper(arg))
}

func transitionCmd(a *app) *cobra.Command {
	var (
		req    workflow.Request
		policy string
	)

	cmd := &cobra.Command{
		Use:   "transition <record-id> <state>",
		Short: "Request one lifecycle transition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecord(args[0])
			if err != nil {
				return err
			}
			if req.To, err = parseState(args[1]); err != nil {
				return err
			}
			if policy != "" {
				req.Assignment = &reviewers.Request{Policy: reviewers.Policy(strings.ToUpper(policy))}
			}

			var res workflow.Result
			err = a.client().sendJSON(cmd.Context(), http.MethodPost, "/products/"+id.String()+"/transitions", req, &res)

			var apiErr *apiError
			if errors.As(err, &apiErr) {
				if json.Unmarshal(apiErr.Body, &res) != nil || len(res.Errors) == 0 {
					return err
				}
				if rerr := a.renderResult(res); rerr != nil {
					return rerr
				}
				return fmt.Errorf("transition rejected: %s", outcome.Join(res.Errors))
			}
			if err != nil {
				return err
			}
			return a.renderResult(res)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Reason, "reason", "", "reason, required when rejecting")
	flags.StringVar(&req.Comment, "comment", "", "comment recorded in the audit entry")
	flags.StringVar(&req.AssignedReviewerID, "reviewer", "", "reviewer to assign when submitting")
	flags.StringVar(&policy, "assign", "", "pick a reviewer by policy: workload, performance, specialty, department, round_robin")
	return cmd
}

func (a *app) renderResult(res workflow.Result) error {
	return a.render(res, func(t table.Writer) {
		rows := []table.Row{
			{"Record", res.RecordID},
			{"Success", res.Success},
			{"Rule", orDash(res.Rule)},
			{"From", orDash(string(res.FromState))},
			{"To", orDash(string(res.NewState))},
		}
		for _, auto := range res.AutomaticTransitions {
			rows = append(rows, table.Row{"Automatic", fmt.Sprintf("%s -> %s (%s)", auto.FromState, auto.NewState, auto.Rule)})
		}
		if res.Record != nil {
			rows = append(rows, table.Row{"Current", res.Record.CurrentState()})
		}
		if res.Selection != nil {
			rows = append(rows, table.Row{"Reviewer", res.Selection.AssigneeID()})
		}
		for _, w := range res.Warnings {
			rows = append(rows, table.Row{"Warning", w})
		}
		for _, e := range res.Errors {
			rows = append(rows, table.Row{string(e.Kind), e.Message})
		}
		details(t, rows...)
	})
}

func nextStatesCmd(a *app) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "next-states <record-id>",
		Short: "List the states a record can move to and from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecord(args[0])
			if err != nil {
				return err
			}

			query := url.Values{}
			if role != "" {
				query.Set("role", role)
			}

			var opts workflow.Options
			if err := a.client().getJSON(cmd.Context(), "/products/"+id.String()+"/transitions", query, &opts); err != nil {
				return err
			}
			return a.render(opts, func(t table.Writer) {
				details(t,
					table.Row{"Record", opts.RecordID},
					table.Row{"Current", opts.Current},
					table.Row{"Role", opts.Role},
					table.Row{"Next", joinStates(opts.Next)},
					table.Row{"Previous", joinStates(opts.Previous)},
				)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "evaluate for this role instead of the caller's")
	return cmd
}
