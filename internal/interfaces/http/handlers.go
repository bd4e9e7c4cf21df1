package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/application/service"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
	"github.com/garyjia/f07-workflow/internal/domain/workflow"
)

const kindStorageBusy = "STORAGE_BUSY"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitRequestBody is the body of POST /api/requests
type SubmitRequestBody struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	CategoryID       int64  `json:"category_id" binding:"required"`
	CorrectionTypeID *int64 `json:"correction_type_id"`
}

// ActionRequestBody is the body of the action endpoints
type ActionRequestBody struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// ListRequestsResponse is a scoped request listing
type ListRequestsResponse struct {
	Scope    service.Scope     `json:"scope"`
	Requests []*entity.Request `json:"requests"`
}

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// SubmitRequest handles POST /api/requests
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var body SubmitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Requests.Submit(c.Request.Context(), service.SubmitCommand{
		Title:            body.Title,
		Description:      body.Description,
		CategoryID:       body.CategoryID,
		CorrectionTypeID: body.CorrectionTypeID,
		Requester:        actorFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var query ListRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	scope, err := h.services.Scope.ResolveScope(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	requests, err := h.services.Requests.List(c.Request.Context(), scope, query.Limit, query.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ListRequestsResponse{Scope: scope, Requests: requests},
	})
}

// ExportRequests handles GET /api/requests/export
func (h *Handlers) ExportRequests(c *gin.Context) {
	scope, err := h.services.Scope.ResolveScope(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	content, filename, err := h.services.Requests.Export(c.Request.Context(), scope)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, ok := h.visibleRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// GetHistory handles GET /api/requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	req, ok := h.visibleRequest(c)
	if !ok {
		return
	}

	records, err := h.services.Requests.History(c.Request.Context(), req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ExecuteAction handles POST /api/requests/:id/actions
func (h *Handlers) ExecuteAction(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	var body ActionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Actions.Execute(c.Request.Context(), service.ActionCommand{
		RequestID: id,
		Action:    body.Action,
		Actor:     actorFrom(c),
		Comment:   body.Comment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ExecuteByToken handles POST /api/approvals/:token
func (h *Handlers) ExecuteByToken(c *gin.Context) {
	var body ActionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Actions.ExecuteByToken(c.Request.Context(), c.Param("token"), service.ActionCommand{
		Action:  body.Action,
		Actor:   actorFrom(c),
		Comment: body.Comment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListPending handles GET /api/tasks/pending
func (h *Handlers) ListPending(c *gin.Context) {
	tasks, err := h.services.Pending.ListPending(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// ResolveTransitions handles GET /api/transitions
func (h *Handlers) ResolveTransitions(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Query("category_id"), 10, 64)
	if err != nil {
		h.badRequest(c, "category_id is required")
		return
	}
	statusID, err := strconv.ParseInt(c.Query("status_id"), 10, 64)
	if err != nil {
		h.badRequest(c, "status_id is required")
		return
	}
	var correctionTypeID *int64
	if raw := c.Query("correction_type_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badRequest(c, "invalid correction_type_id")
			return
		}
		correctionTypeID = &id
	}

	rules, err := h.services.Transitions.Resolve(c.Request.Context(), categoryID, correctionTypeID, statusID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rules})
}

// visibleRequest loads the :id request and hides it when it is outside the caller's scope
func (h *Handlers) visibleRequest(c *gin.Context) (*entity.Request, bool) {
	id, ok := h.requestID(c)
	if !ok {
		return nil, false
	}

	actor := actorFrom(c)
	req, err := h.services.Requests.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	scope, err := h.services.Scope.ResolveScope(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !inScope(scope, req) && req.RequesterID != actor.UserID {
		h.fail(c, workflow.Errorf(workflow.KindNotFound, "request %d not found", id))
		return nil, false
	}
	return req, true
}

func inScope(scope service.Scope, req *entity.Request) bool {
	switch scope.Kind {
	case service.ScopeAll:
		return true
	case service.ScopeDepartment:
		return req.DepartmentID == scope.DepartmentID
	default:
		return req.RequesterID == scope.UserID
	}
}

func (h *Handlers) requestID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid request id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
		Kind:    string(workflow.KindInvalidInput),
	})
}

// fail writes err with the status code of its workflow kind
func (h *Handlers) fail(c *gin.Context, err error) {
	if errors.Is(err, port.ErrStorageBusy) {
		h.logger.Error("Storage busy", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "storage is busy, retry", Kind: kindStorageBusy})
		return
	}

	kind := workflow.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}

	var werr *workflow.Error
	msg := err.Error()
	if errors.As(err, &werr) {
		msg = werr.Message
	}
	c.JSON(status, Response{Success: false, Error: msg, Kind: string(kind)})
}

// statusForKind maps a workflow error kind to an HTTP status code
func statusForKind(kind workflow.Kind) int {
	switch kind {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindRequestClosed:
		return http.StatusConflict
	case workflow.KindActionNotAllowed, workflow.KindDepartmentMismatch, workflow.KindNotDesignatedApprover:
		return http.StatusForbidden
	case workflow.KindConfigurationGap:
		return http.StatusUnprocessableEntity
	case workflow.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
