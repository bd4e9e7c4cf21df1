package service

import (
	"fmt"
	"time"

	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

const (
	stPending   int64 = 1
	stWaitAcct  int64 = 2
	stInProg    int64 = 3
	stWaitClose int64 = 4
	stClosed    int64 = 5
	stRejected  int64 = 6

	catSoftware int64 = 1
	catHardware int64 = 2
	catNetwork  int64 = 3

	deptSales   int64 = 10
	deptFinance int64 = 20
)

var (
	hod7       = workflow.Actor{UserID: 7, RoleName: "Head of Department", DepartmentID: deptSales}
	hod8       = workflow.Actor{UserID: 8, RoleName: "HOD", DepartmentID: deptSales}
	hodOther   = workflow.Actor{UserID: 12, RoleName: "HOD", DepartmentID: 11}
	hod42      = workflow.Actor{UserID: 42, RoleName: "HEAD_OF_DEPARTMENT", DepartmentID: deptSales}
	accountant = workflow.Actor{UserID: 9, RoleName: "Accountant", DepartmentID: deptFinance}
	itStaff    = workflow.Actor{UserID: 11, RoleName: "IT", DepartmentID: 30}
	requester  = workflow.Actor{UserID: 100, RoleName: "User", DepartmentID: deptSales}
	admin      = workflow.Actor{UserID: 1, RoleName: "Administrator", DepartmentID: 1}
)

type testServices struct {
	store         *memStore
	rules         *RuleSet
	action        ActionService
	pending       PendingService
	scope         ScopeService
	requests      RequestService
	notifications NotificationService
	dispatcher    *mockDispatcher
	metrics       *mockMetrics
	sender        *mockSender
	txManager     *mockTxManager
	historyRepo   *mockHistoryRepo
	requestRepo   *mockRequestRepo
}

func newWorld() *memStore {
	s := newMemStore()
	s.addStatus(stPending, entity.StatusPending)
	s.addStatus(stWaitAcct, "WAITING_ACCOUNT_1")
	s.addStatus(stInProg, "IN_PROGRESS")
	s.addStatus(stWaitClose, "WAITING_CLOSE")
	s.addStatus(stClosed, entity.StatusClosed)
	s.addStatus(stRejected, entity.StatusRejected)

	s.categories[catSoftware] = &entity.Category{ID: catSoftware, Name: "Software"}
	s.categories[catHardware] = &entity.Category{ID: catHardware, Name: "Hardware"}
	s.categories[catNetwork] = &entity.Category{ID: catNetwork, Name: "Network"}
	s.correctionTypes[50] = &entity.CorrectionType{ID: 50, CategoryID: catSoftware, Name: "Hotfix"}

	s.rules = []*entity.TransitionRule{
		{ID: 1, CategoryID: catSoftware, CurrentStatusID: stPending, ActionCode: entity.ActionApprove,
			RequiredRoleName: "HEAD_OF_DEPARTMENT", NextStatusID: stWaitAcct, NextStatusCode: "WAITING_ACCOUNT_1",
			StepSequence: 1, FilterByDepartment: true},
		{ID: 2, CategoryID: catSoftware, CurrentStatusID: stPending, ActionCode: entity.ActionReject,
			RequiredRoleName: "HEAD_OF_DEPARTMENT", NextStatusID: stRejected, NextStatusCode: entity.StatusRejected,
			StepSequence: 1, FilterByDepartment: true, StepPolicy: entity.StepPolicyStay},
		{ID: 3, CategoryID: catSoftware, CurrentStatusID: stWaitAcct, ActionCode: entity.ActionApprove,
			RequiredRoleName: "ACCOUNTANT", NextStatusID: stInProg, NextStatusCode: "IN_PROGRESS", StepSequence: 2},
		{ID: 4, CategoryID: catSoftware, CurrentStatusID: stInProg, ActionCode: entity.ActionITProcess,
			RequiredRoleName: "IT", NextStatusID: stClosed, NextStatusCode: entity.StatusClosed, StepSequence: 3},
		{ID: 5, CategoryID: catNetwork, CurrentStatusID: stPending, ActionCode: entity.ActionApprove,
			RequiredRoleName: "HEAD_OF_DEPARTMENT", NextStatusID: stClosed, NextStatusCode: entity.StatusClosed,
			StepSequence: 1},
	}
	s.specials = []*entity.SpecialApproverMapping{{ID: 1, CategoryID: catNetwork, StepSequence: 1, UserID: 42}}
	s.legacy = []*entity.LegacyStepRule{
		{ID: 1, CategoryID: catHardware, StepSequence: 1, ApproverRoleName: "Head of Department", FilterByDepartment: true},
		{ID: 2, CategoryID: catHardware, StepSequence: 2, ApproverRoleName: "IT Staff"},
	}
	s.users = []*entity.User{
		{ID: 7, Name: "Hana", Email: "hana@example.com", RoleName: "HEAD_OF_DEPARTMENT", DepartmentID: deptSales},
		{ID: 8, Name: "Omar", Email: "omar@example.com", RoleName: "HEAD_OF_DEPARTMENT", DepartmentID: deptSales},
		{ID: 9, Name: "Ana", Email: "ana@example.com", RoleName: "ACCOUNTANT", DepartmentID: deptFinance},
		{ID: 11, Name: "Ivo", Email: "ivo@example.com", RoleName: "IT", DepartmentID: 30},
		{ID: 12, Name: "Lee", Email: "lee@example.com", RoleName: "HEAD_OF_DEPARTMENT", DepartmentID: 11},
		{ID: 42, Name: "Mina", Email: "mina@example.com", RoleName: "HEAD_OF_DEPARTMENT", DepartmentID: deptSales},
		{ID: 100, Name: "Remy", Email: "remy@example.com", RoleName: "USER", DepartmentID: deptSales},
	}
	return s
}

var baseTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func seedRequest(s *memStore, categoryID, statusID int64, step int, departmentID int64, createdAt time.Time) *entity.Request {
	seq := int(s.nextID%10000) + 1
	var token *string
	if !entity.IsTerminalStatus(s.statuses[statusID].Code) {
		t := fmt.Sprintf("tok-%d", seq)
		token = &t
	}
	return s.addRequest(&entity.Request{
		DocumentNo:          FormatDocumentNo("F07", 2026, categoryID, seq),
		Title:               "Change",
		CategoryID:          categoryID,
		DepartmentID:        departmentID,
		RequesterID:         requester.UserID,
		CurrentStatusID:     statusID,
		Status:              s.statuses[statusID].Code,
		CurrentApprovalStep: step,
		ApprovalToken:       token,
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
	})
}

func newTestServices(s *memStore) *testServices {
	logger := &mockLogger{}
	refRepo := &mockReferenceRepo{s: s}
	transitionRepo := &mockTransitionRepo{s: s}
	specialRepo := &mockSpecialRepo{s: s}
	requestRepo := &mockRequestRepo{s: s}
	historyRepo := &mockHistoryRepo{s: s}
	userRepo := &mockUserRepo{s: s}

	rules := NewRuleSet(
		NewTransitionSource(transitionRepo),
		NewLegacySource(&mockLegacyRepo{s: s}, transitionRepo, refRepo,
			workflow.LegacyCodes{InProgress: "IN_PROGRESS", Closing: "WAITING_CLOSE"}),
	)
	dispatcher := &mockDispatcher{}
	metrics := &mockMetrics{}
	sender := &mockSender{}
	tx := &mockTxManager{}

	notifications := NewNotificationService(rules, userRepo, specialRepo, requestRepo, sender, dispatcher,
		NotificationConfig{ApprovalBaseURL: "https://f07.example.com/"}, logger)

	return &testServices{
		store: s,
		rules: rules,
		action: NewActionService(requestRepo, historyRepo, refRepo, specialRepo, rules,
			notifications, metrics, tx, logger),
		pending: NewPendingService(rules, requestRepo, specialRepo, metrics, logger),
		scope:   NewScopeService(rules, logger),
		requests: NewRequestService(requestRepo, historyRepo, refRepo, &mockDocRepo{s: s}, notifications,
			nil, nil, tx, RequestConfig{Now: func() time.Time { return baseTime }}, logger),
		notifications: notifications,
		dispatcher:    dispatcher,
		metrics:       metrics,
		sender:        sender,
		txManager:     tx,
		historyRepo:   historyRepo,
		requestRepo:   requestRepo,
	}
}
