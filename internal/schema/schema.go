// Package schema declares the fixed column schemas for every entity the
// pipeline moves. The validation engine and the destination layer consult
// these declarations instead of discovering column types at runtime.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Numeric
	Timestamp
)

// ColumnRole marks columns with format rules beyond their storage type.
type ColumnRole int

const (
	RoleNone ColumnRole = iota
	RoleEmail
	RolePhone
	RoleDate
)

// Column describes one column of an entity.
type Column struct {
	Name string
	Type ColumnType
	Role ColumnRole
}

// IsKey reports whether the column participates in identity checks.
// Identity columns follow the _id naming convention.
func (c Column) IsKey() bool {
	return strings.HasSuffix(c.Name, "_id")
}

// Entity describes a logical source table and its bronze/silver destinations.
type Entity struct {
	Name        string
	Worksheet   string
	BronzeTable string
	SilverTable string
	PrimaryKey  []string
	Columns     []Column
}

// Column returns the declared column with the given name.
func (e Entity) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the declared column names in order.
func (e Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that the declaration is internally consistent: the primary
// key must reference declared columns and date-role columns must be
// timestamps. A failure here is a configuration error, not a data error.
func (e Entity) Validate() error {
	if len(e.PrimaryKey) == 0 {
		return fmt.Errorf("entity %s: no primary key declared", e.Name)
	}
	for _, k := range e.PrimaryKey {
		if _, ok := e.Column(k); !ok {
			return fmt.Errorf("entity %s: primary key column %q not declared", e.Name, k)
		}
	}
	for _, c := range e.Columns {
		if c.Role == RoleDate && c.Type != Timestamp {
			return fmt.Errorf("entity %s: date column %q must be a timestamp", e.Name, c.Name)
		}
	}
	return nil
}

var entities = map[string]Entity{}

func register(e Entity) {
	if _, exists := entities[e.Name]; exists {
		panic(fmt.Sprintf("entity already registered: %s", e.Name))
	}
	if err := e.Validate(); err != nil {
		panic(err)
	}
	entities[e.Name] = e
}

// Get returns an entity by name.
func Get(name string) (Entity, bool) {
	e, ok := entities[name]
	return e, ok
}

// All returns every registered entity, sorted by name for stable ordering.
func All() []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
