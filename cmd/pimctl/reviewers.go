package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

func reviewersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewers",
		Short: "Inspect and manage the reviewer directory",
	}
	cmd.AddCommand(
		reviewersListCmd(a),
		reviewersSummaryCmd(a),
		reviewersAvailabilityCmd(a),
		reviewersAssignCmd(a),
	)
	return cmd
}

func reviewersListCmd(a *app) *cobra.Command {
	var availability, department string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviewer profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if availability != "" {
				query.Set("availability", strings.ToUpper(availability))
			}
			if department != "" {
				query.Set("department", department)
			}

			var res pagination.PageResult[reviewers.Profile]
			if err := a.client().getJSON(cmd.Context(), "/reviewers", query, &res); err != nil {
				return err
			}
			return a.render(res, func(t table.Writer) {
				t.AppendHeader(table.Row{"User", "Name", "Availability", "Load", "Quality", "Department", "Specialties"})
				for _, p := range res.Data {
					t.AppendRow(table.Row{
						p.UserID, p.DisplayName, p.Availability,
						fmt.Sprintf("%d/%d", p.CurrentAssignments, p.MaxAssignments),
						fmt.Sprintf("%.2f", p.QualityScore), orDash(p.Department),
						orDash(strings.Join(p.Specialties, ", ")),
					})
				}
			})
		},
	}
	cmd.Flags().StringVar(&availability, "availability", "", "AVAILABLE, BUSY, AWAY or VACATION")
	cmd.Flags().StringVar(&department, "department", "", "department")
	return cmd
}

func reviewersSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <user-id>",
		Short: "Show workload and performance for one reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s reviewers.Summary
			if err := a.client().getJSON(cmd.Context(), "/reviewers/"+url.PathEscape(args[0])+"/summary", nil, &s); err != nil {
				return err
			}
			return a.render(s, func(t table.Writer) {
				delegate := "-"
				if s.ActiveDelegation != nil {
					delegate = fmt.Sprintf("%s until %s", s.ActiveDelegation.DelegateID, stamp(&s.ActiveDelegation.EndAt))
				}
				details(t,
					table.Row{"User", s.UserID},
					table.Row{"Name", s.DisplayName},
					table.Row{"Availability", s.Availability},
					table.Row{"Assignments", fmt.Sprintf("%d/%d", s.CurrentAssignments, s.MaxAssignments)},
					table.Row{"Capacity", percent(s.CapacityPercent)},
					table.Row{"Over capacity", s.OverCapacity},
					table.Row{"Reviews", s.ReviewsCompleted},
					table.Row{"Approval rate", percent(s.ApprovalRate)},
					table.Row{"Quality", fmt.Sprintf("%.2f", s.QualityScore)},
					table.Row{"Delegation", delegate},
				)
			})
		},
	}
}

func reviewersAvailabilityCmd(a *app) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "availability <user-id> <status>",
		Short: "Set base availability, or a scheduled window with --start and --end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := reviewers.Availability(strings.ToUpper(args[1]))
			body := reviewers.AvailabilityCommand{Status: status}

			if start != "" || end != "" {
				from, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				to, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				body.StartAt, body.EndAt = &from, &to
			}

			var p reviewers.Profile
			path := "/reviewers/" + url.PathEscape(args[0]) + "/availability"
			if err := a.client().sendJSON(cmd.Context(), http.MethodPut, path, body, &p); err != nil {
				return err
			}
			return a.render(p, func(t table.Writer) {
				scheduled := "-"
				if w := p.ScheduledAvailability; w != nil {
					scheduled = fmt.Sprintf("%s %s to %s", w.Status, stamp(&w.StartAt), stamp(&w.EndAt))
				}
				details(t,
					table.Row{"User", p.UserID},
					table.Row{"Availability", p.Availability},
					table.Row{"Scheduled", scheduled},
				)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start, RFC 3339")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC 3339")
	return cmd
}

func reviewersAssignCmd(a *app) *cobra.Command {
	var (
		req    reviewers.Request
		policy string
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Pick a reviewer by policy without assigning a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Policy = reviewers.Policy(strings.ToUpper(policy))

			var sel reviewers.Selection
			if err := a.client().sendJSON(cmd.Context(), http.MethodPost, "/reviewers/assignments", req, &sel); err != nil {
				return err
			}
			return a.render(sel, func(t table.Writer) {
				rows := []table.Row{
					{"Assignee", sel.AssigneeID()},
					{"Policy", sel.Policy},
					{"Score", fmt.Sprintf("%.3f", sel.Score)},
					{"Candidates", sel.Candidates},
				}
				for _, s := range sel.Substitutions {
					rows = append(rows, table.Row{string(s.Kind), fmt.Sprintf("%s -> %s", s.FromID, s.ToID)})
				}
				details(t, rows...)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&policy, "policy", string(reviewers.Workload), "workload, performance, specialty, department or round_robin")
	flags.StringVar(&req.Specialty, "specialty", "", "specialty for the specialty policy")
	flags.StringVar(&req.Department, "department", "", "department for the department policy")
	flags.StringSliceVar(&req.Pool, "pool", nil, "restrict candidates to these user ids")
	return cmd
}
