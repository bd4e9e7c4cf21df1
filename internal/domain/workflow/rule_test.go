package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

func int64Ptr(v int64) *int64 { return &v }

func pendingRequest() *entity.Request {
	return &entity.Request{
		ID:                  1,
		DocumentNo:          "F07-2026-01-0001",
		CategoryID:          1,
		DepartmentID:        10,
		RequesterID:         100,
		CurrentStatusID:     1,
		Status:              entity.StatusPending,
		CurrentApprovalStep: 1,
	}
}

func hodRules() []Rule {
	return []Rule{
		FromTransition(entity.TransitionRule{
			ID: 1, CategoryID: 1, CurrentStatusID: 1, StepSequence: 1,
			ActionCode: entity.ActionApprove, RequiredRoleName: "HEAD_OF_DEPARTMENT",
			NextStatusID: 2, NextStatusCode: "IN_PROGRESS", FilterByDepartment: true,
		}),
		FromTransition(entity.TransitionRule{
			ID: 2, CategoryID: 1, CurrentStatusID: 1, StepSequence: 1,
			ActionCode: entity.ActionReject, RequiredRoleName: "HEAD_OF_DEPARTMENT",
			NextStatusID: 4, NextStatusCode: entity.StatusRejected, FilterByDepartment: true,
			StepPolicy: entity.StepPolicyStay,
		}),
	}
}

func TestFromTransition_StepPolicy(t *testing.T) {
	rules := hodRules()
	assert.Equal(t, 2, rules[0].NextStep)
	assert.Equal(t, 1, rules[1].NextStep)
	assert.Equal(t, RoleHeadOfDepartment, rules[0].RequiredRole)
	assert.Equal(t, SourceTransition, rules[0].Source)
}

func TestAuthorize(t *testing.T) {
	hod := Actor{UserID: 7, RoleName: "Head of Department", DepartmentID: 10}

	tests := []struct {
		name     string
		mutate   func(r *entity.Request)
		rules    []Rule
		action   string
		actor    Actor
		specials map[int]int64
		wantKind Kind
		wantRule int64
	}{
		{name: "approve", rules: hodRules(), action: entity.ActionApprove, actor: hod, wantRule: 1},
		{name: "reject", rules: hodRules(), action: entity.ActionReject, actor: hod, wantRule: 2},
		{
			name:     "closed",
			mutate:   func(r *entity.Request) { r.Status = entity.StatusClosed },
			rules:    hodRules(),
			action:   entity.ActionApprove,
			actor:    hod,
			wantKind: KindRequestClosed,
		},
		{name: "no rules", action: entity.ActionApprove, actor: hod, wantKind: KindConfigurationGap},
		{
			name:     "wrong role",
			rules:    hodRules(),
			action:   entity.ActionApprove,
			actor:    Actor{UserID: 8, RoleName: "IT", DepartmentID: 10},
			wantKind: KindActionNotAllowed,
		},
		{
			name:     "wrong action",
			rules:    hodRules(),
			action:   entity.ActionITProcess,
			actor:    hod,
			wantKind: KindActionNotAllowed,
		},
		{
			name:     "department mismatch",
			rules:    hodRules(),
			action:   entity.ActionApprove,
			actor:    Actor{UserID: 7, RoleName: "HOD", DepartmentID: 11},
			wantKind: KindDepartmentMismatch,
		},
		{
			name:     "special approver mismatch",
			rules:    hodRules(),
			action:   entity.ActionApprove,
			actor:    hod,
			specials: map[int]int64{1: 99},
			wantKind: KindNotDesignatedApprover,
		},
		{
			name:     "special approver match",
			rules:    hodRules(),
			action:   entity.ActionApprove,
			actor:    Actor{UserID: 99, RoleName: "HOD", DepartmentID: 10},
			specials: map[int]int64{1: 99},
			wantRule: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pendingRequest()
			if tt.mutate != nil {
				tt.mutate(req)
			}

			rule, err := Authorize(req, tt.rules, tt.action, tt.actor, tt.specials)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRule, rule.RuleID)
		})
	}
}

func TestError_Is(t *testing.T) {
	err := Errorf(KindDepartmentMismatch, "dept %d", 3)
	assert.True(t, errors.Is(err, ErrDepartmentMismatch))
	assert.False(t, errors.Is(err, ErrActionNotAllowed))
	assert.Equal(t, "dept 3", err.Error())
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestLegacyRules(t *testing.T) {
	steps := []entity.LegacyStepRule{
		{ID: 1, CategoryID: 2, StepSequence: 1, ApproverRoleName: "HOD", FilterByDepartment: true},
		{ID: 2, CategoryID: 2, StepSequence: 2, ApproverRoleName: "IT"},
		{ID: 3, CategoryID: 2, StepSequence: 3, ApproverRoleName: "Final Approver"},
		{ID: 4, CategoryID: 9, StepSequence: 4, ApproverRoleName: "IT"},
	}
	codes := LegacyCodes{InProgress: "IN_PROGRESS", Closing: "WAITING_CLOSE"}

	t.Run("middle step advances", func(t *testing.T) {
		rules := LegacyRules(entity.Category{ID: 2}, steps, 1, codes)
		require.Len(t, rules, 2)
		assert.Equal(t, entity.ActionApprove, rules[0].ActionCode)
		assert.Equal(t, "IN_PROGRESS", rules[0].NextStatusCode)
		assert.Equal(t, 2, rules[0].NextStep)
		assert.True(t, rules[0].FilterByDepartment)
		assert.Equal(t, entity.StatusRejected, rules[1].NextStatusCode)
		assert.Equal(t, 1, rules[1].NextStep)
	})

	t.Run("final closing step", func(t *testing.T) {
		rules := LegacyRules(entity.Category{ID: 2, RequiresFinalClosing: true}, steps, 2, codes)
		require.Len(t, rules, 2)
		assert.Equal(t, "WAITING_CLOSE", rules[0].NextStatusCode)
	})

	t.Run("last step closes", func(t *testing.T) {
		rules := LegacyRules(entity.Category{ID: 2, RequiresFinalClosing: true}, steps, 3, codes)
		require.Len(t, rules, 3)
		assert.Equal(t, entity.StatusClosed, rules[0].NextStatusCode)
		assert.Equal(t, entity.ActionConfirmComplete, rules[1].ActionCode)
		assert.Equal(t, RoleFinalApprover, rules[1].RequiredRole)
	})

	t.Run("unknown step", func(t *testing.T) {
		assert.Empty(t, LegacyRules(entity.Category{ID: 2}, steps, 5, codes))
	})
}

func TestActionsFor(t *testing.T) {
	req := pendingRequest()
	actor := Actor{UserID: 7, RoleName: "HOD", DepartmentID: 10}

	assert.Equal(t, []string{entity.ActionApprove, entity.ActionReject}, ActionsFor(req, hodRules(), actor, nil))

	actor.DepartmentID = 11
	assert.Empty(t, ActionsFor(req, hodRules(), actor, nil))
}

func TestRule_AppliesTo(t *testing.T) {
	req := pendingRequest()
	rule := hodRules()[0]
	assert.True(t, rule.AppliesTo(req))

	req.CorrectionTypeID = int64Ptr(3)
	assert.False(t, rule.AppliesTo(req))

	legacy := Rule{Source: SourceLegacy, CategoryID: 1, StepSequence: 1}
	assert.True(t, legacy.AppliesTo(req))
	req.CurrentApprovalStep = 2
	assert.False(t, legacy.AppliesTo(req))
}
