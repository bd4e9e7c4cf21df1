package seed

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

// Summary counts the rows written by a load
type Summary struct {
	Statuses         int      `json:"statuses"`
	Roles            int      `json:"roles"`
	Actions          int      `json:"actions"`
	Departments      int      `json:"departments"`
	Categories       int      `json:"categories"`
	CorrectionTypes  int      `json:"correction_types"`
	Transitions      int      `json:"transitions"`
	LegacySteps      int      `json:"legacy_steps"`
	SpecialApprovers int      `json:"special_approvers"`
	Users            int      `json:"users"`
	Warnings         []string `json:"warnings"`
}

// Loader writes a validated workflow definition through the repositories
type Loader struct {
	reference   port.ReferenceRepository
	transitions port.TransitionRepository
	legacy      port.LegacyStepRepository
	specials    port.SpecialApproverRepository
	users       port.UserRepository
	txManager   port.TransactionManager
	logger      *zap.Logger
}

// NewLoader creates a new seed loader
func NewLoader(
	reference port.ReferenceRepository,
	transitions port.TransitionRepository,
	legacy port.LegacyStepRepository,
	specials port.SpecialApproverRepository,
	users port.UserRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *Loader {
	return &Loader{
		reference:   reference,
		transitions: transitions,
		legacy:      legacy,
		specials:    specials,
		users:       users,
		txManager:   txManager,
		logger:      logger,
	}
}

// ids resolves names in the file to row ids as they are written
type ids struct {
	statuses    map[string]int64
	roles       map[string]int64
	actions     map[string]int64
	departments map[string]int64
	users       map[string]int64
	roleIndex   *roleIndex
}

func (r *ids) role(name string) int64 {
	declared, _ := r.roleIndex.lookup(name)
	return r.roles[declared]
}

// Load validates f and upserts every row in one transaction.
// Loading the same file twice leaves the tables unchanged.
func (l *Loader) Load(ctx context.Context, f *File) (*Summary, error) {
	_, warnings, err := f.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		l.logger.Warn("Workflow definition warning", zap.String("warning", w))
	}

	summary := &Summary{Warnings: warnings}
	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		resolved := &ids{
			statuses:    make(map[string]int64),
			roles:       make(map[string]int64),
			actions:     make(map[string]int64),
			departments: make(map[string]int64),
			users:       make(map[string]int64),
			roleIndex:   newRoleIndex(f.Roles),
		}
		if err := l.loadReference(txCtx, f, resolved, summary); err != nil {
			return err
		}
		if err := l.loadUsers(txCtx, f, resolved, summary); err != nil {
			return err
		}
		for _, c := range f.Categories {
			if err := l.loadCategory(txCtx, c, resolved, summary); err != nil {
				return fmt.Errorf("category %s: %w", c.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to load workflow definition", zap.Error(err))
		return nil, err
	}

	l.logger.Info("Workflow definition loaded",
		zap.Int("categories", summary.Categories),
		zap.Int("transitions", summary.Transitions),
		zap.Int("legacy_steps", summary.LegacySteps),
		zap.Int("users", summary.Users),
		zap.Int("warnings", len(summary.Warnings)))
	return summary, nil
}

func (l *Loader) loadReference(ctx context.Context, f *File, resolved *ids, summary *Summary) error {
	for _, s := range f.Statuses {
		status := &entity.Status{Code: strings.ToUpper(s.Code), Name: s.Name, Color: s.Color, DisplayOrder: s.Order}
		if status.Name == "" {
			status.Name = status.Code
		}
		if err := l.reference.UpsertStatus(ctx, status); err != nil {
			return err
		}
		resolved.statuses[status.Code] = status.ID
		summary.Statuses++
	}

	for _, name := range f.Roles {
		role := &entity.Role{Name: strings.TrimSpace(name)}
		if err := l.reference.UpsertRole(ctx, role); err != nil {
			return err
		}
		resolved.roles[name] = role.ID
		summary.Roles++
	}

	for _, a := range f.Actions {
		action := &entity.Action{Code: strings.ToUpper(a.Code), Name: a.Name}
		if action.Name == "" {
			action.Name = action.Code
		}
		if err := l.reference.UpsertAction(ctx, action); err != nil {
			return err
		}
		resolved.actions[action.Code] = action.ID
		summary.Actions++
	}

	for _, name := range f.Departments {
		dept := &entity.Department{Name: name}
		if err := l.reference.UpsertDepartment(ctx, dept); err != nil {
			return err
		}
		resolved.departments[name] = dept.ID
		summary.Departments++
	}
	return nil
}

func (l *Loader) loadUsers(ctx context.Context, f *File, resolved *ids, summary *Summary) error {
	for _, u := range f.Users {
		user := &entity.User{
			ID:           u.ID,
			Name:         u.Name,
			Email:        strings.ToLower(u.Email),
			RoleID:       resolved.role(u.Role),
			DepartmentID: resolved.departments[u.Department],
		}
		if err := l.users.Upsert(ctx, user); err != nil {
			return err
		}
		resolved.users[user.Email] = user.ID
		summary.Users++
	}
	return nil
}

func (l *Loader) loadCategory(ctx context.Context, c CategoryDef, resolved *ids, summary *Summary) error {
	category := &entity.Category{Name: c.Name, RequiresFinalClosing: c.RequiresFinalClosing}
	if err := l.reference.UpsertCategory(ctx, category); err != nil {
		return err
	}
	summary.Categories++

	correctionTypes := make(map[string]int64)
	for _, name := range c.CorrectionTypes {
		ct := &entity.CorrectionType{CategoryID: category.ID, Name: name}
		if err := l.reference.UpsertCorrectionType(ctx, ct); err != nil {
			return err
		}
		correctionTypes[name] = ct.ID
		summary.CorrectionTypes++
	}

	for _, t := range c.Transitions {
		rule := &entity.TransitionRule{
			CategoryID:         category.ID,
			CurrentStatusID:    resolved.statuses[strings.ToUpper(t.From)],
			ActionID:           resolved.actions[strings.ToUpper(t.Action)],
			RequiredRoleID:     resolved.role(t.Role),
			NextStatusID:       resolved.statuses[strings.ToUpper(t.To)],
			StepSequence:       t.Step,
			FilterByDepartment: t.FilterByDepartment,
			StepPolicy:         entity.StepPolicy(strings.ToUpper(t.StepPolicy)),
		}
		if t.CorrectionType != "" {
			id := correctionTypes[t.CorrectionType]
			rule.CorrectionTypeID = &id
		}
		if err := l.transitions.Upsert(ctx, rule); err != nil {
			return err
		}
		summary.Transitions++
	}

	for _, s := range c.LegacySteps {
		step := &entity.LegacyStepRule{
			CategoryID:         category.ID,
			StepSequence:       s.Step,
			ApproverRoleName:   s.Role,
			FilterByDepartment: s.FilterByDepartment,
		}
		if err := l.legacy.Upsert(ctx, step); err != nil {
			return err
		}
		summary.LegacySteps++
	}

	for _, sa := range c.SpecialApprovers {
		mapping := &entity.SpecialApproverMapping{
			CategoryID:   category.ID,
			StepSequence: sa.Step,
			UserID:       resolved.users[strings.ToLower(sa.User)],
		}
		if err := l.specials.Upsert(ctx, mapping); err != nil {
			return err
		}
		summary.SpecialApprovers++
	}
	return nil
}
