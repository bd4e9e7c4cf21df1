package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

// SubmitCommand creates a new change request
type SubmitCommand struct {
	Title            string
	Description      string
	CategoryID       int64
	CorrectionTypeID *int64
	Requester        workflow.Actor
}

// SubmitResult is the created request and who was told about it
type SubmitResult struct {
	Request       *entity.Request                  `json:"request"`
	Notifications []entity.NotificationInstruction `json:"notifications"`
}

// RequestService manages change requests outside of workflow actions
type RequestService interface {
	Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error)
	Get(ctx context.Context, id int64) (*entity.Request, error)
	History(ctx context.Context, id int64) ([]*entity.ApprovalHistory, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]*entity.Request, error)

	// Export renders the scoped listing as a spreadsheet and archives a copy
	Export(ctx context.Context, scope Scope) ([]byte, string, error)
}

// RequestConfig holds request numbering settings
type RequestConfig struct {
	DocumentPrefix string
	Now            func() time.Time
}

type requestServiceImpl struct {
	requestRepo   port.RequestRepository
	historyRepo   port.HistoryRepository
	referenceRepo port.ReferenceRepository
	docRepo       port.DocNumberRepository
	notifications NotificationService
	exporter      port.RequestExporter
	storage       port.FileStorage
	txManager     port.TransactionManager
	config        RequestConfig
	logger        Logger
}

// NewRequestService creates a new RequestService. exporter and storage may be nil.
func NewRequestService(
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	referenceRepo port.ReferenceRepository,
	docRepo port.DocNumberRepository,
	notifications NotificationService,
	exporter port.RequestExporter,
	storage port.FileStorage,
	txManager port.TransactionManager,
	config RequestConfig,
	logger Logger,
) RequestService {
	if config.DocumentPrefix == "" {
		config.DocumentPrefix = "F07"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &requestServiceImpl{
		requestRepo:   requestRepo,
		historyRepo:   historyRepo,
		referenceRepo: referenceRepo,
		docRepo:       docRepo,
		notifications: notifications,
		exporter:      exporter,
		storage:       storage,
		txManager:     txManager,
		config:        config,
		logger:        logger,
	}
}

// FormatDocumentNo renders <prefix>-<year>-<category:02>-<seq:04>
func FormatDocumentNo(prefix string, year int, categoryID int64, seq int) string {
	return fmt.Sprintf("%s-%d-%02d-%04d", prefix, year, categoryID, seq)
}

// Submit validates and creates a request in PENDING at step 1
func (s *requestServiceImpl) Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error) {
	cmd.Title = strings.TrimSpace(cmd.Title)
	if cmd.Title == "" || cmd.CategoryID <= 0 || cmd.Requester.UserID <= 0 {
		return nil, workflow.Errorf(workflow.KindInvalidInput, "title, category and requester are required")
	}

	now := s.config.Now().UTC()
	var req *entity.Request

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		category, err := s.referenceRepo.GetCategory(txCtx, cmd.CategoryID)
		if err != nil {
			return fmt.Errorf("get category: %w", err)
		}
		if category == nil {
			return workflow.Errorf(workflow.KindInvalidInput, "category %d does not exist", cmd.CategoryID)
		}

		if cmd.CorrectionTypeID != nil {
			ct, err := s.referenceRepo.GetCorrectionType(txCtx, *cmd.CorrectionTypeID)
			if err != nil {
				return fmt.Errorf("get correction type: %w", err)
			}
			if ct == nil || ct.CategoryID != category.ID {
				return workflow.Errorf(workflow.KindInvalidInput,
					"correction type %d does not belong to category %d", *cmd.CorrectionTypeID, category.ID)
			}
		}

		pending, err := s.referenceRepo.GetStatusByCode(txCtx, entity.StatusPending)
		if err != nil {
			return fmt.Errorf("get pending status: %w", err)
		}
		if pending == nil {
			return workflow.Errorf(workflow.KindConfigurationGap, "status %s is not configured", entity.StatusPending)
		}

		seq, err := s.docRepo.Next(txCtx, s.config.DocumentPrefix, now.Year(), category.ID)
		if err != nil {
			return fmt.Errorf("allocate document number: %w", err)
		}

		token := uuid.NewString()
		req = &entity.Request{
			DocumentNo:          FormatDocumentNo(s.config.DocumentPrefix, now.Year(), category.ID, seq),
			Title:               cmd.Title,
			Description:         strings.TrimSpace(cmd.Description),
			CategoryID:          category.ID,
			CorrectionTypeID:    cmd.CorrectionTypeID,
			DepartmentID:        cmd.Requester.DepartmentID,
			RequesterID:         cmd.Requester.UserID,
			CurrentStatusID:     pending.ID,
			Status:              pending.Code,
			CurrentApprovalStep: 1,
			ApprovalToken:       &token,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		history := &entity.ApprovalHistory{
			RequestID:    req.ID,
			ActorID:      cmd.Requester.UserID,
			ActionCode:   entity.ActionSubmit,
			ToStatus:     pending.Code,
			StepSequence: 0,
			Comment:      "Request submitted",
			CreatedAt:    now,
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to submit request", "error", err, "category_id", cmd.CategoryID, "requester_id", cmd.Requester.UserID)
		return nil, err
	}

	result := &SubmitResult{Request: req}
	if s.notifications != nil {
		instructions, err := s.notifications.Plan(ctx, req, entity.ActionSubmit, "")
		if err != nil {
			s.logger.Error("Failed to plan notifications", "error", err, "request_id", req.ID)
		}
		result.Notifications = instructions
		s.notifications.Publish(ctx, req, entity.ActionSubmit, instructions)
	}

	s.logger.Info("Request submitted", "id", req.ID, "document_no", req.DocumentNo, "category_id", req.CategoryID)
	return result, nil
}

// Get retrieves a request by ID
func (s *requestServiceImpl) Get(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get request", "error", err, "id", id)
		return nil, err
	}
	if req == nil {
		return nil, workflow.Errorf(workflow.KindNotFound, "request %d not found", id)
	}
	return req, nil
}

// History returns the audit trail of a request, oldest first
func (s *requestServiceImpl) History(ctx context.Context, id int64) ([]*entity.ApprovalHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.historyRepo.GetByRequestID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get history", "error", err, "id", id)
		return nil, err
	}
	if records == nil {
		records = []*entity.ApprovalHistory{}
	}
	return records, nil
}

// List returns requests visible under scope, newest first
func (s *requestServiceImpl) List(ctx context.Context, scope Scope, limit, offset int) ([]*entity.Request, error) {
	filter := port.RequestFilter{Limit: limit, Offset: offset}
	switch scope.Kind {
	case ScopeAll:
	case ScopeDepartment:
		filter.DepartmentID = &scope.DepartmentID
	case ScopeOwn:
		filter.RequesterID = &scope.UserID
	default:
		return nil, workflow.Errorf(workflow.KindInvalidInput, "unknown scope %q", scope.Kind)
	}

	requests, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list requests", "error", err, "scope", scope.Kind)
		return nil, err
	}
	if requests == nil {
		requests = []*entity.Request{}
	}
	return requests, nil
}

// Export renders the scoped listing as a spreadsheet and archives a copy
func (s *requestServiceImpl) Export(ctx context.Context, scope Scope) ([]byte, string, error) {
	if s.exporter == nil {
		return nil, "", fmt.Errorf("export is not configured")
	}

	requests, err := s.List(ctx, scope, 0, 0)
	if err != nil {
		return nil, "", err
	}

	statuses, err := s.referenceRepo.ListStatuses(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list statuses: %w", err)
	}
	byID := make(map[int64]*entity.Status, len(statuses))
	for _, st := range statuses {
		byID[st.ID] = st
	}

	content, err := s.exporter.Export(ctx, requests, byID)
	if err != nil {
		s.logger.Error("Failed to export requests", "error", err, "scope", scope.Kind)
		return nil, "", err
	}

	now := s.config.Now()
	filename := fmt.Sprintf("requests-%s.xlsx", now.Format("20060102-150405"))
	if s.storage != nil {
		archivePath := fmt.Sprintf("exports/%s/%s", now.Format("2006/01"), filename)
		if err := s.storage.Save(ctx, archivePath, content); err != nil {
			// The caller still gets the file
			s.logger.Error("Failed to archive export", "error", err, "path", archivePath)
		}
	}

	s.logger.Info("Requests exported", "count", len(requests), "scope", scope.Kind, "filename", filename)
	return content, filename, nil
}
