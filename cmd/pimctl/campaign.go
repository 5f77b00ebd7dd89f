package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/campaigns"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

func campaignCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Run and inspect bulk transition campaigns",
	}
	cmd.AddCommand(
		campaignStartCmd(a),
		campaignStatusCmd(a),
		campaignCancelCmd(a),
		campaignListCmd(a),
	)
	return cmd
}

func campaignStartCmd(a *app) *cobra.Command {
	var (
		start    campaigns.StartCommand
		to       string
		state    string
		category string
		dept     string
		ids      []string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a campaign over the records matching the filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := parseState(to)
			if err != nil {
				return err
			}
			start.Action.To = target

			if state != "" {
				s, err := parseState(state)
				if err != nil {
					return err
				}
				v := string(s)
				start.Filter.State = &v
			}
			if category != "" {
				start.Filter.Category = &category
			}
			if dept != "" {
				start.Filter.Department = &dept
			}
			for _, raw := range ids {
				id, err := parseRecord(raw)
				if err != nil {
					return err
				}
				start.Filter.IDs = append(start.Filter.IDs, id)
			}

			var res outcome.Result[campaigns.Campaign]
			if err := a.client().sendJSON(cmd.Context(), http.MethodPost, "/campaigns", start, &res); err != nil {
				return err
			}
			return a.renderCampaign(res.Data)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&to, "to", "", "target state")
	flags.StringVar(&start.Action.Reason, "reason", "", "reason recorded for every transition")
	flags.StringVar(&start.Action.Comment, "comment", "", "comment recorded for every transition")
	flags.StringVar(&start.Action.AssignedReviewerID, "reviewer", "", "reviewer assigned when submitting")
	flags.StringVar(&state, "state", "", "only records in this state")
	flags.StringVar(&category, "category", "", "only records in this category")
	flags.StringVar(&dept, "department", "", "only records in this department")
	flags.StringSliceVar(&ids, "ids", nil, "only these record ids")
	flags.IntVar(&start.BatchSize, "batch-size", 0, "records per batch (server default when 0)")
	flags.BoolVar(&start.DryRun, "dry-run", false, "preview outcomes without committing")
	flags.BoolVar(&start.SkipValidation, "skip-validation", false, "skip preconditions and conditions (needs records.skip_validation)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func campaignID(arg string) (string, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("invalid campaign id %q", arg)
	}
	return id.String(), nil
}

func campaignStatusCmd(a *app) *cobra.Command {
	var results bool

	cmd := &cobra.Command{
		Use:   "status <campaign-id>",
		Short: "Show campaign progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := campaignID(args[0])
			if err != nil {
				return err
			}
			var res outcome.Result[campaigns.Campaign]
			if err := a.client().getJSON(cmd.Context(), "/campaigns/"+id, nil, &res); err != nil {
				return err
			}
			if err := a.renderCampaign(res.Data); err != nil {
				return err
			}
			if results && !a.json() && res.Data != nil {
				return a.renderItems(res.Data.Results)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&results, "results", false, "also list per-record results")
	return cmd
}

func campaignCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <campaign-id>",
		Short: "Stop a campaign after its current batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := campaignID(args[0])
			if err != nil {
				return err
			}
			var res outcome.Result[campaigns.Campaign]
			if err := a.client().sendJSON(cmd.Context(), http.MethodPost, "/campaigns/"+id+"/cancel", nil, &res); err != nil {
				return err
			}
			return a.renderCampaign(res.Data)
		},
	}
}

func campaignListCmd(a *app) *cobra.Command {
	var (
		status  string
		creator string
		page    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if status != "" {
				query.Set("status", strings.ToLower(status))
			}
			if creator != "" {
				query.Set("created_by", creator)
			}
			if page > 0 {
				query.Set("page", fmt.Sprint(page))
			}

			var res outcome.Result[pagination.PageResult[campaigns.Campaign]]
			if err := a.client().getJSON(cmd.Context(), "/campaigns", query, &res); err != nil {
				return err
			}
			var items []campaigns.Campaign
			if res.Data != nil {
				items = res.Data.Data
			}
			return a.render(res.Data, func(t table.Writer) {
				t.AppendHeader(table.Row{"ID", "Status", "Action", "Items", "OK", "Failed", "Progress", "Created By", "Created"})
				for _, c := range items {
					t.AppendRow(table.Row{
						c.ID, c.Status, c.Action.To, c.TotalItems, c.SuccessfulItems, c.FailedItems,
						percent(c.Progress.Percentage), c.CreatedBy, stamp(&c.CreatedAt),
					})
				}
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&status, "status", "", "pending, running, completed, failed or cancelled")
	flags.StringVar(&creator, "created-by", "", "only campaigns started by this actor")
	flags.IntVar(&page, "page", 0, "page number")
	return cmd
}

func (a *app) renderCampaign(c *campaigns.Campaign) error {
	if c == nil {
		return fmt.Errorf("empty campaign response")
	}
	return a.render(c, func(t table.Writer) {
		details(t,
			table.Row{"ID", c.ID},
			table.Row{"Status", c.Status},
			table.Row{"Action", c.Action.To},
			table.Row{"Dry run", c.DryRun},
			table.Row{"Items", c.TotalItems},
			table.Row{"Processed", c.ProcessedItems},
			table.Row{"Succeeded", c.SuccessfulItems},
			table.Row{"Failed", c.FailedItems},
			table.Row{"Progress", fmt.Sprintf("%s (batch %d of %d)", percent(c.Progress.Percentage), c.Progress.CurrentBatch, c.Progress.TotalBatches)},
			table.Row{"Error", deref(c.Error)},
			table.Row{"Created by", c.CreatedBy},
			table.Row{"Started", stamp(c.StartedAt)},
			table.Row{"Completed", stamp(c.CompletedAt)},
		)
	})
}

func (a *app) renderItems(items []campaigns.ItemResult) error {
	return a.render(items, func(t table.Writer) {
		t.AppendHeader(table.Row{"Record", "From", "To", "OK", "Error"})
		for _, it := range items {
			t.AppendRow(table.Row{it.RecordID, it.FromState, it.ToState, it.Success, orDash(outcome.Join(it.Errors))})
		}
	})
}
