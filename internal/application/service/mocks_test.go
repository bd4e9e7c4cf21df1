package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/event"
)

// memStore backs every mock repository with one in-memory data set
type memStore struct {
	mu sync.Mutex

	categories      map[int64]*entity.Category
	correctionTypes map[int64]*entity.CorrectionType
	statuses        map[int64]*entity.Status
	rules           []*entity.TransitionRule
	legacy          []*entity.LegacyStepRule
	specials        []*entity.SpecialApproverMapping
	requests        map[int64]*entity.Request
	history         []*entity.ApprovalHistory
	sequences       map[string]int
	users           []*entity.User
	nextID          int64
}

func newMemStore() *memStore {
	return &memStore{
		categories:      make(map[int64]*entity.Category),
		correctionTypes: make(map[int64]*entity.CorrectionType),
		statuses:        make(map[int64]*entity.Status),
		requests:        make(map[int64]*entity.Request),
		sequences:       make(map[string]int),
		nextID:          1000,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addStatus(id int64, code string) *entity.Status {
	st := &entity.Status{ID: id, Code: code, Name: code, DisplayOrder: int(id)}
	s.statuses[id] = st
	return st
}

func (s *memStore) addRequest(req *entity.Request) *entity.Request {
	if req.ID == 0 {
		req.ID = s.id()
	}
	cp := *req
	s.requests[req.ID] = &cp
	return req
}

func (s *memStore) request(id int64) *entity.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.requests[id]
	return &cp
}

func (s *memStore) historyFor(id int64) []*entity.ApprovalHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.ApprovalHistory
	for _, h := range s.history {
		if h.RequestID == id {
			out = append(out, h)
		}
	}
	return out
}

type mockReferenceRepo struct{ s *memStore }

func (m *mockReferenceRepo) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *mockReferenceRepo) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Category
	for _, c := range m.s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockReferenceRepo) GetCorrectionType(ctx context.Context, id int64) (*entity.CorrectionType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.correctionTypes[id], nil
}

func (m *mockReferenceRepo) GetStatusByID(ctx context.Context, id int64) (*entity.Status, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.statuses[id], nil
}

func (m *mockReferenceRepo) GetStatusByCode(ctx context.Context, code string) (*entity.Status, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, st := range m.s.statuses {
		if st.Code == code {
			return st, nil
		}
	}
	return nil, nil
}

func (m *mockReferenceRepo) ListStatuses(ctx context.Context) ([]*entity.Status, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Status
	for _, st := range m.s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockReferenceRepo) UpsertStatus(ctx context.Context, status *entity.Status) error { return nil }
func (m *mockReferenceRepo) UpsertRole(ctx context.Context, role *entity.Role) error       { return nil }
func (m *mockReferenceRepo) UpsertAction(ctx context.Context, action *entity.Action) error { return nil }
func (m *mockReferenceRepo) UpsertDepartment(ctx context.Context, dept *entity.Department) error {
	return nil
}
func (m *mockReferenceRepo) UpsertCategory(ctx context.Context, category *entity.Category) error {
	return nil
}
func (m *mockReferenceRepo) UpsertCorrectionType(ctx context.Context, ct *entity.CorrectionType) error {
	return nil
}

type mockTransitionRepo struct {
	s           *memStore
	resolveFunc func(ctx context.Context, categoryID int64, correctionTypeID *int64, statusID int64) ([]*entity.TransitionRule, error)
}

func (m *mockTransitionRepo) Resolve(ctx context.Context, categoryID int64, correctionTypeID *int64, statusID int64) ([]*entity.TransitionRule, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, categoryID, correctionTypeID, statusID)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.TransitionRule
	for _, r := range m.s.rules {
		if r.CategoryID == categoryID && r.CurrentStatusID == statusID &&
			entity.SameCorrectionType(r.CorrectionTypeID, correctionTypeID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockTransitionRepo) List(ctx context.Context) ([]*entity.TransitionRule, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]*entity.TransitionRule(nil), m.s.rules...), nil
}

func (m *mockTransitionRepo) HasCategory(ctx context.Context, categoryID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.rules {
		if r.CategoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTransitionRepo) Upsert(ctx context.Context, rule *entity.TransitionRule) error {
	return nil
}

type mockLegacyRepo struct{ s *memStore }

func (m *mockLegacyRepo) ListByCategory(ctx context.Context, categoryID int64) ([]*entity.LegacyStepRule, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.LegacyStepRule
	for _, r := range m.s.legacy {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLegacyRepo) List(ctx context.Context) ([]*entity.LegacyStepRule, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]*entity.LegacyStepRule(nil), m.s.legacy...), nil
}

func (m *mockLegacyRepo) Upsert(ctx context.Context, rule *entity.LegacyStepRule) error { return nil }

type mockSpecialRepo struct{ s *memStore }

func (m *mockSpecialRepo) ListByCategory(ctx context.Context, categoryID int64) ([]*entity.SpecialApproverMapping, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.SpecialApproverMapping
	for _, r := range m.s.specials {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockSpecialRepo) Upsert(ctx context.Context, mapping *entity.SpecialApproverMapping) error {
	return nil
}

type mockRequestRepo struct {
	s          *memStore
	createFunc func(ctx context.Context, req *entity.Request) error
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.requests {
		if existing.DocumentNo == req.DocumentNo {
			return fmt.Errorf("duplicate document number %s", req.DocumentNo)
		}
	}
	m.s.addRequest(req)
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRequestRepo) GetByToken(ctx context.Context, token string) (*entity.Request, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.requests {
		if r.ApprovalToken != nil && *r.ApprovalToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) ApplyTransition(ctx context.Context, t entity.RequestTransition) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.requests[t.RequestID]
	if !ok || r.CurrentStatusID != t.ExpectedStatusID {
		return false, nil
	}
	r.CurrentStatusID = t.NextStatusID
	r.Status = t.NextStatusCode
	r.CurrentApprovalStep = t.NextStep
	if t.ClearToken {
		r.ApprovalToken = nil
	}
	return true, nil
}

func (m *mockRequestRepo) ListActive(ctx context.Context, categoryIDs []int64) ([]*entity.Request, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	wanted := make(map[int64]bool)
	for _, id := range categoryIDs {
		wanted[id] = true
	}
	var out []*entity.Request
	for _, r := range m.s.requests {
		if wanted[r.CategoryID] && !r.IsTerminal() {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Request
	for _, r := range m.s.requests {
		if filter.DepartmentID != nil && r.DepartmentID != *filter.DepartmentID {
			continue
		}
		if filter.RequesterID != nil && r.RequesterID != *filter.RequesterID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type mockHistoryRepo struct {
	s          *memStore
	createFunc func(ctx context.Context, history *entity.ApprovalHistory) error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, history)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	history.ID = m.s.id()
	m.s.history = append(m.s.history, history)
	return nil
}

func (m *mockHistoryRepo) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.ApprovalHistory, error) {
	return m.s.historyFor(requestID), nil
}

type mockDocRepo struct{ s *memStore }

func (m *mockDocRepo) Next(ctx context.Context, prefix string, year int, categoryID int64) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := fmt.Sprintf("%s/%d/%d", prefix, year, categoryID)
	m.s.sequences[key]++
	return m.s.sequences[key], nil
}

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*entity.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]*entity.User(nil), m.s.users...), nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *entity.User) error { return nil }

// mockTxManager serializes transactions the way BEGIN IMMEDIATE does
type mockTxManager struct {
	mu                  sync.Mutex
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockMetrics struct {
	mu      sync.Mutex
	actions []string
	pending []int
}

func (m *mockMetrics) ObserveAction(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action+":"+outcome)
}

func (m *mockMetrics) ObservePending(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, count)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type mockSender struct {
	mu       sync.Mutex
	sent     []string
	sendFunc func(ctx context.Context, email, subject, body string) error
}

func (m *mockSender) SendEmail(ctx context.Context, email, subject, body string) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, email, subject, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email+"|"+subject+"|"+body)
	return nil
}
