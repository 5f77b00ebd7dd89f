package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// auditFilters holds the query flags shared by audit commands.
type auditFilters struct {
	record   string
	actor    string
	action   string
	priority string
	state    string
	from     string
	to       string
}

func (f *auditFilters) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.record, "record", "", "record id")
	flags.StringVar(&f.actor, "actor", "", "actor id")
	flags.StringVar(&f.action, "action", "", "action name")
	flags.StringVar(&f.priority, "priority", "", "low, normal, high or critical")
	flags.StringVar(&f.state, "state", "", "resulting state")
	flags.StringVar(&f.from, "from", "", "earliest timestamp, RFC 3339")
	flags.StringVar(&f.to, "to", "", "latest timestamp, RFC 3339")
}

func (f *auditFilters) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("record_id", f.record)
	set("actor_id", f.actor)
	set("action", f.action)
	set("priority", f.priority)
	set("state", strings.ToUpper(f.state))
	set("from", f.from)
	set("to", f.to)
	return q
}

func auditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and export the audit ledger",
	}
	cmd.AddCommand(auditListCmd(a), auditExportCmd(a), auditAggregateCmd(a))
	return cmd
}

func auditListCmd(a *app) *cobra.Command {
	var (
		filters auditFilters
		page    int
		size    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := filters.query()
			if page > 0 {
				query.Set("page", fmt.Sprint(page))
			}
			if size > 0 {
				query.Set("page_size", fmt.Sprint(size))
			}

			var res pagination.PageResult[audit.Entry]
			if err := a.client().getJSON(cmd.Context(), "/audit", query, &res); err != nil {
				return err
			}
			return a.render(res, func(t table.Writer) {
				t.AppendHeader(table.Row{"Timestamp", "Record", "Actor", "Action", "State", "Priority", "Reason"})
				for _, e := range res.Data {
					t.AppendRow(table.Row{
						stamp(&e.Timestamp), e.RecordID, e.ActorID, e.Action,
						e.ResultingState, e.Priority, deref(e.Reason),
					})
				}
				t.AppendFooter(table.Row{"", "", "", "", "", "Total", res.Total})
			})
		},
	}
	filters.bind(cmd)
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&size, "page-size", 0, "entries per page")
	return cmd
}

func auditExportCmd(a *app) *cobra.Command {
	var (
		filters auditFilters
		format  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Stream matching entries as CSV or JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := audit.ParseFormat(strings.ToLower(format))
			if err != nil {
				return err
			}
			query := filters.query()
			query.Set("format", string(f))

			data, err := a.client().do(cmd.Context(), http.MethodGet, "/audit/export", query, nil)
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}
	filters.bind(cmd)
	cmd.Flags().StringVar(&format, "format", string(audit.FormatCSV), "csv or json")
	return cmd
}

func auditAggregateCmd(a *app) *cobra.Command {
	var filters auditFilters

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Count matching entries by action, actor, priority and day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var agg audit.Aggregation
			if err := a.client().getJSON(cmd.Context(), "/audit/aggregate", filters.query(), &agg); err != nil {
				return err
			}
			return a.render(agg, func(t table.Writer) {
				t.AppendHeader(table.Row{"Dimension", "Key", "Count"})
				groups := []struct {
					name    string
					buckets []audit.Bucket
				}{
					{"action", agg.ByAction},
					{"actor", agg.ByActor},
					{"priority", agg.ByPriority},
					{"day", agg.ByDay},
				}
				for _, g := range groups {
					for _, b := range g.buckets {
						t.AppendRow(table.Row{g.name, b.Key, b.Count})
					}
					t.AppendSeparator()
				}
				t.AppendFooter(table.Row{"", "Total", agg.Total})
			})
		},
	}
	filters.bind(cmd)
	return cmd
}
