package binding

import (
	"fmt"
	"sort"

	"inventory-sync/core/database"

	"gorm.io/gorm"
)

// SchemaReport is the result of checking the bound models against the live database.
type SchemaReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

// TableReport lists the columns a table is missing.
type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

// CheckSchema verifies that every table and column named by a descriptor exists.
func CheckSchema(db *gorm.DB, registry *Registry) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	expected := expectedColumns(registry)
	report := &SchemaReport{
		Matched: true,
		Tables:  make(map[string]TableReport, len(expected)),
		Errors:  []string{},
	}

	tables := make([]string, 0, len(expected))
	for t := range expected {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, table := range tables {
		tr := TableReport{MissingColumns: []string{}, Status: "ok"}
		actual, err := database.ColumnSet(db, table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", table, err))
			report.Matched = false
			tr.Status = "error"
			report.Tables[table] = tr
			continue
		}
		if len(actual) == 0 {
			tr.Status = "missing"
			report.Matched = false
			report.Tables[table] = tr
			continue
		}
		for _, col := range expected[table] {
			if _, ok := actual[col]; !ok {
				tr.MissingColumns = append(tr.MissingColumns, col)
			}
		}
		if len(tr.MissingColumns) > 0 {
			tr.Status = "error"
			report.Matched = false
		}
		report.Tables[table] = tr
	}
	return report, nil
}

// expectedColumns collects the sorted columns each table must provide.
func expectedColumns(registry *Registry) map[string][]string {
	sets := make(map[string]map[string]struct{})
	add := func(table string, cols ...string) {
		if sets[table] == nil {
			sets[table] = make(map[string]struct{})
		}
		for _, c := range cols {
			if c != "" {
				sets[table][c] = struct{}{}
			}
		}
	}

	for _, name := range registry.Types() {
		m, _ := registry.Model(name)
		add(m.Table, m.PK)
		if m.hasCustom() {
			add(m.Table, m.CustomColumn)
		}
		for i := range m.Fields {
			f := &m.Fields[i]
			switch f.Kind {
			case Scalar:
				add(m.Table, f.Column)
			case ForeignKey:
				add(m.Table, f.Column, f.TypeColumn)
			case ManyToMany:
				add(f.JoinTable, f.OwnerColumn, f.RelatedColumn)
			case Association:
				add(AssociationTable, "id", "relationship", "source_type", "source_id", "destination_type", "destination_id")
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for table, set := range sets {
		cols := make([]string, 0, len(set))
		for c := range set {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		out[table] = cols
	}
	return out
}
