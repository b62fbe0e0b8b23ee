// Package handler exposes the registrar-facing HTTP surface: domain
// lifecycle commands, availability checks, the poll queue, and the
// operator-only reconciliation task.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"regcore/internal/platform/metrics"
	"regcore/internal/platform/middleware"
	"regcore/internal/registry/batch"
	"regcore/internal/registry/models"
	"regcore/internal/registry/service"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/platform/httputil"
	"regcore/pkg/requestcontext"
)

// Service defines the domain command operations the handler dispatches to.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*service.CreateResult, error)
	Renew(ctx context.Context, cmd service.RenewCommand) (*service.RenewResult, error)
	Delete(ctx context.Context, cmd service.DeleteCommand) (*service.DeleteResult, error)
	Restore(ctx context.Context, cmd service.RestoreCommand) (*service.RestoreResult, error)
	RequestTransfer(ctx context.Context, cmd service.TransferRequestCommand) (*service.TransferResult, error)
	DecideTransfer(ctx context.Context, cmd service.TransferDecisionCommand) (*service.TransferResult, error)
	Check(ctx context.Context, names []string) ([]service.CheckResult, error)
	PollMessages(ctx context.Context, limit int) ([]*models.PollMessage, error)
	AckPollMessage(ctx context.Context, rawID string) error
}

// Reconciler runs the probe-data reconciliation sweep.
type Reconciler interface {
	Run(ctx context.Context, params batch.Params) (batch.Result, error)
}

// Handler handles registry endpoints.
type Handler struct {
	logger       *slog.Logger
	registry     Service
	reconciler   Reconciler
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new registry Handler.
func New(
	registry Service,
	reconciler Reconciler,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		registry:     registry,
		reconciler:   reconciler,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	registryRouter := chi.NewRouter()
	registryRouter.Use(middleware.Recovery(h.logger))
	registryRouter.Use(middleware.RequestID)
	registryRouter.Use(middleware.RequestTime)
	registryRouter.Use(middleware.Logger(h.logger))
	registryRouter.Use(middleware.Timeout(30 * time.Second))
	registryRouter.Use(middleware.ContentTypeJSON)
	registryRouter.Use(middleware.Latency(h.metrics))
	registryRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	registryRouter.Post("/commands/domain/check", h.handleCheck)
	registryRouter.Post("/commands/domain/create", h.handleCreate)
	registryRouter.Post("/commands/domain/renew", h.handleRenew)
	registryRouter.Post("/commands/domain/delete", h.handleDelete)
	registryRouter.Post("/commands/domain/restore", h.handleRestore)
	registryRouter.Post("/commands/domain/transfer", h.handleTransferRequest)
	registryRouter.Post("/commands/domain/transfer/approve", h.handleTransferApprove)
	registryRouter.Post("/commands/domain/transfer/reject", h.handleTransferReject)
	registryRouter.Get("/poll", h.handlePoll)
	registryRouter.Post("/poll/{messageID}/ack", h.handlePollAck)

	registryRouter.Group(func(operator chi.Router) {
		operator.Use(middleware.RequireSuperuser(h.logger))
		operator.Post("/tasks/reconcile", h.handleReconcile)
	})

	r.Mount("/", registryRouter)
}

type checkRequest struct {
	Names []string `json:"names"`
}

type checkResponse struct {
	Results []service.CheckResult `json:"results"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	results, err := h.registry.Check(ctx, req.Names)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkResponse{Results: results})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd service.CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registry.Create(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd service.RenewCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registry.Renew(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd service.DeleteCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registry.Delete(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd service.RestoreCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registry.Restore(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTransferRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd service.TransferRequestCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registry.RequestTransfer(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTransferApprove(w http.ResponseWriter, r *http.Request) {
	h.handleTransferDecision(w, r, true)
}

func (h *Handler) handleTransferReject(w http.ResponseWriter, r *http.Request) {
	h.handleTransferDecision(w, r, false)
}

type transferDecisionRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleTransferDecision(w http.ResponseWriter, r *http.Request, approve bool) {
	ctx := r.Context()

	var req transferDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.registry.DecideTransfer(ctx, service.TransferDecisionCommand{
		Name:    req.Name,
		Approve: approve,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type pollMessageResponse struct {
	ID        string    `json:"id"`
	RepoID    string    `json:"repoId"`
	EventTime time.Time `json:"eventTime"`
	Message   string    `json:"message"`
}

type pollResponse struct {
	Messages []pollMessageResponse `json:"messages"`
}

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	messages, err := h.registry.PollMessages(ctx, limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	resp := pollResponse{Messages: make([]pollMessageResponse, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, pollMessageResponse{
			ID:        msg.ID.String(),
			RepoID:    msg.RepoID.String(),
			EventTime: msg.EventTime,
			Message:   msg.Message,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePollAck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.registry.AckPollMessage(ctx, chi.URLParam(r, "messageID")); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reconcileRequest struct {
	TLDs        []string `json:"tlds"`
	DryRun      bool     `json:"dryRun"`
	BatchSize   int      `json:"batchSize,omitempty"`
	MaxDuration string   `json:"maxDuration,omitempty"`
}

type reconcileResponse struct {
	SoftDeleted     int  `json:"softDeleted"`
	HardDeleted     int  `json:"hardDeleted"`
	WouldSoftDelete int  `json:"wouldSoftDelete,omitempty"`
	WouldHardDelete int  `json:"wouldHardDelete,omitempty"`
	Defective       int  `json:"defective"`
	Batches         int  `json:"batches"`
	Truncated       bool `json:"truncated"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	params := batch.Params{
		TLDs:      req.TLDs,
		DryRun:    req.DryRun,
		BatchSize: req.BatchSize,
	}
	if req.MaxDuration != "" {
		maxDuration, err := time.ParseDuration(req.MaxDuration)
		if err != nil {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid maxDuration"))
			return
		}
		params.MaxDuration = maxDuration
	}

	result, err := h.reconciler.Run(ctx, params)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reconcileResponse{
		SoftDeleted:     result.SoftDeleted,
		HardDeleted:     result.HardDeleted,
		WouldSoftDelete: result.WouldSoftDelete,
		WouldHardDelete: result.WouldHardDelete,
		Defective:       result.Defective,
		Batches:         result.Batches,
		Truncated:       result.Truncated,
	})
}

// writeError logs the failure at a severity matching its class and renders
// the HTTP response. Internal detail never reaches the registrar.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := requestcontext.RequestID(ctx)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeRetryable:
		h.logger.ErrorContext(ctx, "command failed",
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.WarnContext(ctx, "command rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
