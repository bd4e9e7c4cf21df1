package seed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
	"github.com/garyjia/f07-workflow/pkg/utils"
)

// File is a workflow definition document
type File struct {
	Statuses    []StatusDef   `yaml:"statuses"`
	Roles       []string      `yaml:"roles"`
	Actions     []ActionDef   `yaml:"actions"`
	Departments []string      `yaml:"departments"`
	Categories  []CategoryDef `yaml:"categories"`
	Users       []UserDef     `yaml:"users"`
}

// StatusDef declares a request status
type StatusDef struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
	Order int    `yaml:"order"`
}

// ActionDef declares an action code
type ActionDef struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// CategoryDef declares a category with its workflow
type CategoryDef struct {
	Name                 string               `yaml:"name"`
	RequiresFinalClosing bool                 `yaml:"requires_final_closing"`
	CorrectionTypes      []string             `yaml:"correction_types"`
	Transitions          []TransitionDef      `yaml:"transitions"`
	LegacySteps          []LegacyStepDef      `yaml:"legacy_steps"`
	SpecialApprovers     []SpecialApproverDef `yaml:"special_approvers"`
}

// TransitionDef is one edge of a category's transition table
type TransitionDef struct {
	CorrectionType     string `yaml:"correction_type"`
	From               string `yaml:"from"`
	Action             string `yaml:"action"`
	Role               string `yaml:"role"`
	To                 string `yaml:"to"`
	Step               int    `yaml:"step"`
	FilterByDepartment bool   `yaml:"filter_by_department"`
	StepPolicy         string `yaml:"step_policy"`
}

// LegacyStepDef is one step of a category's legacy approval chain
type LegacyStepDef struct {
	Step               int    `yaml:"step"`
	Role               string `yaml:"role"`
	FilterByDepartment bool   `yaml:"filter_by_department"`
}

// SpecialApproverDef reserves a step for one user, referenced by email
type SpecialApproverDef struct {
	Step int    `yaml:"step"`
	User string `yaml:"user"`
}

// UserDef declares a user. ID is optional and kept when given.
type UserDef struct {
	ID         int64  `yaml:"id"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
}

// Parse decodes a workflow definition, rejecting unknown keys
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	return &f, nil
}

// ParseFile reads and decodes a workflow definition file
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow definition: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Definitions converts the category transitions into table definitions
func (f *File) Definitions() []workflow.Definition {
	var defs []workflow.Definition
	for _, c := range f.Categories {
		for _, t := range c.Transitions {
			defs = append(defs, workflow.Definition{
				Category:           c.Name,
				CorrectionType:     t.CorrectionType,
				From:               strings.ToUpper(t.From),
				Action:             strings.ToUpper(t.Action),
				Role:               t.Role,
				To:                 strings.ToUpper(t.To),
				Step:               t.Step,
				FilterByDepartment: t.FilterByDepartment,
				StepPolicy:         entity.StepPolicy(strings.ToUpper(t.StepPolicy)),
			})
		}
	}
	return defs
}

// Validate checks the document as a whole. Errors make the file unloadable;
// warnings describe configurations that load but deserve a look.
func (f *File) Validate() (*workflow.Table, []string, error) {
	builder := workflow.NewTableBuilder()
	builder.Add(f.Definitions()...)
	table, buildErr := builder.Build()

	var problems []string

	statuses := make(map[string]bool)
	for _, s := range f.Statuses {
		code := strings.ToUpper(s.Code)
		if err := utils.ValidateCode(code); err != nil {
			problems = append(problems, "status: "+err.Error())
		}
		statuses[code] = true
	}
	actions := make(map[string]bool)
	for _, a := range f.Actions {
		code := strings.ToUpper(a.Code)
		if err := utils.ValidateCode(code); err != nil {
			problems = append(problems, "action: "+err.Error())
		}
		actions[code] = true
	}
	roles := newRoleIndex(f.Roles)
	departments := make(map[string]bool)
	for _, d := range f.Departments {
		departments[d] = true
	}
	emails := make(map[string]bool)
	for _, u := range f.Users {
		emails[strings.ToLower(u.Email)] = true
		if err := utils.ValidateEmail(u.Email); err != nil {
			problems = append(problems, fmt.Sprintf("user %d: %v", u.ID, err))
		}
		if !roles.has(u.Role) {
			problems = append(problems, fmt.Sprintf("user %s has undeclared role %q", u.Email, u.Role))
		}
		if u.Department != "" && !departments[u.Department] {
			problems = append(problems, fmt.Sprintf("user %s has undeclared department %q", u.Email, u.Department))
		}
	}
	if !statuses[entity.StatusPending] {
		problems = append(problems, fmt.Sprintf("status %s must be declared", entity.StatusPending))
	}

	var warnings []string
	for _, c := range f.Categories {
		correctionTypes := make(map[string]bool)
		for _, ct := range c.CorrectionTypes {
			correctionTypes[ct] = true
		}
		for _, def := range f.Definitions() {
			if def.Category != c.Name {
				continue
			}
			for _, code := range []string{def.From, def.To} {
				if !statuses[code] {
					problems = append(problems, fmt.Sprintf("category %s uses undeclared status %q", c.Name, code))
				}
			}
			if !actions[def.Action] {
				problems = append(problems, fmt.Sprintf("category %s uses undeclared action %q", c.Name, def.Action))
			}
			if !roles.has(def.Role) {
				problems = append(problems, fmt.Sprintf("category %s uses undeclared role %q", c.Name, def.Role))
			}
			if def.CorrectionType != "" && !correctionTypes[def.CorrectionType] {
				problems = append(problems, fmt.Sprintf("category %s uses undeclared correction type %q", c.Name, def.CorrectionType))
			}
		}

		for _, s := range c.LegacySteps {
			if s.Step < 1 || s.Role == "" {
				problems = append(problems, fmt.Sprintf("category %s has an invalid legacy step %d", c.Name, s.Step))
			}
		}
		for _, sa := range c.SpecialApprovers {
			if !emails[strings.ToLower(sa.User)] {
				problems = append(problems, fmt.Sprintf("category %s reserves step %d for unknown user %q", c.Name, sa.Step, sa.User))
			}
		}

		if len(c.Transitions) > 0 && len(c.LegacySteps) > 0 {
			warnings = append(warnings, fmt.Sprintf("category %s has transition rules and legacy steps; legacy steps are ignored", c.Name))
		}
		if len(c.Transitions) == 0 && len(c.LegacySteps) == 0 {
			warnings = append(warnings, fmt.Sprintf("category %s has no workflow; its requests cannot be acted on", c.Name))
		}
	}

	if table != nil {
		for _, dead := range table.DeadEnds() {
			warnings = append(warnings, fmt.Sprintf("status %s has no outgoing transition", dead))
		}
	}

	var errs []error
	if buildErr != nil {
		errs = append(errs, buildErr)
	}
	sort.Strings(problems)
	for _, p := range dedupe(problems) {
		errs = append(errs, errors.New(p))
	}
	if len(errs) > 0 {
		return nil, warnings, fmt.Errorf("invalid workflow definition: %w", errors.Join(errs...))
	}
	return table, warnings, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// roleIndex looks up declared roles by normalized name, then by canonical name
type roleIndex struct {
	normalized map[string]string
	canonical  map[string]string
}

func newRoleIndex(names []string) *roleIndex {
	idx := &roleIndex{normalized: make(map[string]string), canonical: make(map[string]string)}
	for _, name := range names {
		idx.normalized[workflow.NormalizeRoleName(name)] = name
		if _, ok := idx.canonical[workflow.CanonicalRoleName(name)]; !ok {
			idx.canonical[workflow.CanonicalRoleName(name)] = name
		}
	}
	return idx
}

// lookup returns the declared role a reference resolves to
func (r *roleIndex) lookup(name string) (string, bool) {
	if declared, ok := r.normalized[workflow.NormalizeRoleName(name)]; ok {
		return declared, true
	}
	declared, ok := r.canonical[workflow.CanonicalRoleName(name)]
	return declared, ok
}

func (r *roleIndex) has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}
