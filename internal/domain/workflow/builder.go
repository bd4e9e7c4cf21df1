package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

// Definition is one transition edge expressed with codes and names rather than ids
type Definition struct {
	Category           string
	CorrectionType     string // empty for the category's generic workflow
	From               string
	Action             string
	Role               string
	To                 string
	Step               int
	FilterByDepartment bool
	StepPolicy         entity.StepPolicy
}

// key is the uniqueness tuple for a definition
func (d Definition) key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", d.Category, d.CorrectionType, d.From, d.Action, CanonicalRoleName(d.Role))
}

// TableBuilder collects transition definitions and validates them as a whole
type TableBuilder interface {
	// Configure returns a state configuration for status within a category workflow
	Configure(category, correctionType, status string) StateConfiguration

	// Add appends already-constructed definitions, as read from a seed file
	Add(defs ...Definition)

	// Build validates every definition and returns the resulting table
	Build() (*Table, error)
}

// StateConfiguration configures transitions leaving one status
type StateConfiguration interface {
	// Permit allows role to move the request to status `to` with action
	Permit(action, role, to string, step int, opts ...PermitOption) StateConfiguration
}

// PermitOption adjusts a definition added by Permit
type PermitOption func(*Definition)

// FilterByDepartment restricts the edge to actors in the request's department
func FilterByDepartment() PermitOption {
	return func(d *Definition) {
		d.FilterByDepartment = true
	}
}

// WithStepPolicy sets how the approval step moves after the edge fires
func WithStepPolicy(p entity.StepPolicy) PermitOption {
	return func(d *Definition) {
		d.StepPolicy = p
	}
}

type tableBuilder struct {
	definitions []Definition
}

type stateConfig struct {
	builder        *tableBuilder
	category       string
	correctionType string
	from           string
}

// NewTableBuilder creates an empty builder
func NewTableBuilder() TableBuilder {
	return &tableBuilder{}
}

// Configure returns a state configuration for status within a category workflow
func (b *tableBuilder) Configure(category, correctionType, status string) StateConfiguration {
	return &stateConfig{
		builder:        b,
		category:       category,
		correctionType: correctionType,
		from:           status,
	}
}

// Permit allows role to move the request to status `to` with action
func (c *stateConfig) Permit(action, role, to string, step int, opts ...PermitOption) StateConfiguration {
	d := Definition{
		Category:       c.category,
		CorrectionType: c.correctionType,
		From:           c.from,
		Action:         action,
		Role:           role,
		To:             to,
		Step:           step,
	}
	for _, opt := range opts {
		opt(&d)
	}
	c.builder.definitions = append(c.builder.definitions, d)
	return c
}

// Add appends already-constructed definitions, as read from a seed file
func (b *tableBuilder) Add(defs ...Definition) {
	b.definitions = append(b.definitions, defs...)
}

// Build validates every definition and returns the resulting table.
// All problems are reported together.
func (b *tableBuilder) Build() (*Table, error) {
	var errs []error
	seen := make(map[string]int)

	for i, d := range b.definitions {
		switch {
		case d.Category == "" || d.From == "" || d.Action == "" || d.Role == "" || d.To == "":
			errs = append(errs, fmt.Errorf("%w: definition %d has empty fields", ErrInvalidDefinition, i))
			continue
		case d.Step < 1:
			errs = append(errs, fmt.Errorf("%w: definition %d has step %d", ErrInvalidDefinition, i, d.Step))
		case !d.StepPolicy.IsValid():
			errs = append(errs, fmt.Errorf("%w: definition %d has step policy %q", ErrInvalidDefinition, i, d.StepPolicy))
		}
		if entity.IsTerminalStatus(d.From) {
			errs = append(errs, fmt.Errorf("%w: %s %s -> %s", ErrTerminalTransition, d.Category, d.From, d.To))
		}
		if j, dup := seen[d.key()]; dup {
			errs = append(errs, fmt.Errorf("%w: definitions %d and %d share %s", ErrDuplicateRule, j, i, d.key()))
			continue
		}
		seen[d.key()] = i
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Table{definitions: append([]Definition(nil), b.definitions...)}, nil
}

// Table is a validated, immutable set of transition definitions
type Table struct {
	definitions []Definition
}

// Definitions returns a copy of every definition in insertion order
func (t *Table) Definitions() []Definition {
	return append([]Definition(nil), t.definitions...)
}

// Resolve returns the definitions leaving status, matching the correction type exactly
func (t *Table) Resolve(category, correctionType, status string) []Definition {
	var out []Definition
	for _, d := range t.definitions {
		if d.Category == category && d.CorrectionType == correctionType && d.From == status {
			out = append(out, d)
		}
	}
	return out
}

// DeadEnds lists non-terminal statuses that are reachable but have no outgoing edge,
// formatted as "category/correctionType/status"
func (t *Table) DeadEnds() []string {
	outgoing := make(map[string]bool)
	for _, d := range t.definitions {
		outgoing[d.Category+"/"+d.CorrectionType+"/"+d.From] = true
	}

	found := make(map[string]bool)
	for _, d := range t.definitions {
		k := d.Category + "/" + d.CorrectionType + "/" + d.To
		if !entity.IsTerminalStatus(d.To) && !outgoing[k] {
			found[k] = true
		}
	}

	deadEnds := make([]string, 0, len(found))
	for k := range found {
		deadEnds = append(deadEnds, k)
	}
	sort.Strings(deadEnds)
	return deadEnds
}
