// Package query provides SQL query building utilities with projection mapping.
package query

import "strings"

type projected struct {
	field  string
	column string
}

// ProjectionMap maps record field names to alias-qualified columns of one table.
// Only projected fields may be filtered or sorted on by name; anything else passed
// to Column is treated as a raw SQL expression.
type ProjectionMap struct {
	schema string
	table  string
	alias  string
	fields []projected
}

// NewProjectionMap creates a ProjectionMap for schema.table under alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{schema: schema, table: table, alias: alias}
}

// Project maps column to field. Columns are selected in projection order.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	p.fields = append(p.fields, projected{field: field, column: p.alias + "." + column})
	return p
}

// Table returns the FROM clause target: schema.table alias.
func (p *ProjectionMap) Table() string {
	return p.schema + "." + p.table + " " + p.alias
}

// Has reports whether field is projected.
func (p *ProjectionMap) Has(field string) bool {
	_, ok := p.lookup(field)
	return ok
}

// Column returns the qualified column for field, or field itself when it is not
// projected so callers can pass expressions such as date_trunc('day', a.timestamp).
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.lookup(field); ok {
		return col
	}
	return field
}

// Columns returns the select list.
func (p *ProjectionMap) Columns() string {
	cols := make([]string, len(p.fields))
	for i, f := range p.fields {
		cols[i] = f.column
	}
	return strings.Join(cols, ", ")
}

// Fields returns the projected field names in order.
func (p *ProjectionMap) Fields() []string {
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.field
	}
	return names
}

func (p *ProjectionMap) lookup(field string) (string, bool) {
	for _, f := range p.fields {
		if f.field == field {
			return f.column, true
		}
	}
	return "", false
}
