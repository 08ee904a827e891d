package filter

import (
	"fmt"
	"strings"
)

// Column describes a filterable column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// RelationKind distinguishes to-one from to-many relations.
type RelationKind int

const (
	// BelongsTo follows a foreign key on the owning table to exactly one row.
	BelongsTo RelationKind = iota + 1
	// ManyToMany follows a link table to any number of rows.
	ManyToMany
)

// Relation is a one-hop link from a table to another table.
type Relation struct {
	Name   string
	Kind   RelationKind
	Target *Table

	// LocalKey is the foreign key column on the owning table (BelongsTo).
	LocalKey string

	// Through is the link table, ThroughLocal references the owning table and
	// ThroughRemote references Target (ManyToMany).
	Through       string
	ThroughLocal  string
	ThroughRemote string
}

// Table describes the columns and relations filters may reference.
type Table struct {
	Name       string
	PrimaryKey string
	Columns    []Column
	Relations  []Relation
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Relation returns the named relation.
func (t *Table) Relation(name string) (Relation, bool) {
	for _, r := range t.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Qualified returns column prefixed with the table name.
func (t *Table) Qualified(column string) string {
	return t.Name + "." + column
}

// fieldPath is a dotted path resolved against a table.
type fieldPath struct {
	relation *Relation
	column   Column
}

// resolve accepts "column" or "relation.column". Deeper paths are rejected.
func (t *Table) resolve(path string) (fieldPath, error) {
	parts := strings.Split(path, ".")
	switch len(parts) {
	case 1:
		col, ok := t.Column(parts[0])
		if !ok {
			return fieldPath{}, fmt.Errorf("%s has no column %q", t.Name, parts[0])
		}
		return fieldPath{column: col}, nil
	case 2:
		rel, ok := t.Relation(parts[0])
		if !ok {
			return fieldPath{}, fmt.Errorf("%s has no relation %q", t.Name, parts[0])
		}
		if rel.Target == nil {
			return fieldPath{}, fmt.Errorf("relation %s.%s has no target table", t.Name, rel.Name)
		}
		col, ok := rel.Target.Column(parts[1])
		if !ok {
			return fieldPath{}, fmt.Errorf("%s has no column %q", rel.Target.Name, parts[1])
		}
		return fieldPath{relation: &rel, column: col}, nil
	default:
		return fieldPath{}, fmt.Errorf("path %q spans more than one relation", path)
	}
}
