package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/services"
	"github.com/secure-ai-studio/backend/pkg/response"
)

// GenerateRequest is the request body for POST /api/generate.
type GenerateRequest struct {
	Prompt      string            `json:"prompt"`
	MediaType   string            `json:"media_type"`
	QualityTier string            `json:"quality_tier"`
	Consent     *services.Consent `json:"consent"`
}

// GenerateResponse is returned on successful admission.
type GenerateResponse struct {
	JobID              string `json:"job_id"`
	RequestID          string `json:"request_id"`
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	State              string `json:"state"`
	EstimatedCostCents int64  `json:"estimated_cost_cents"`
}

type GenerateHandler struct {
	orchestrator *services.Orchestrator
	tracker      *services.JobTracker
}

func NewGenerateHandler(orchestrator *services.Orchestrator, tracker *services.JobTracker) *GenerateHandler {
	return &GenerateHandler{orchestrator: orchestrator, tracker: tracker}
}

// Submit admits a generation request and dispatches it to a provider
// POST /api/generate
func (h *GenerateHandler) Submit(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	job, err := h.orchestrator.Submit(c.Request.Context(), &services.SubmitRequest{
		Prompt:      req.Prompt,
		MediaType:   req.MediaType,
		QualityTier: req.QualityTier,
		Consent:     req.Consent,
	})
	if err != nil {
		respondSubmitError(c, err)
		return
	}

	response.Success(c, GenerateResponse{
		JobID:              job.JobID,
		RequestID:          job.RequestID,
		Provider:           job.ProviderID,
		Model:              job.ModelID,
		State:              job.State,
		EstimatedCostCents: job.ReservedCents,
	})
}

// respondSubmitError maps admission failures onto HTTP statuses. Validation
// and consent problems are the caller's to fix; budget exhaustion is 402;
// a failed provider call is 502 and safe to retry.
func respondSubmitError(c *gin.Context, err error) {
	var valErr *services.ValidationError
	var consentErr *services.ConsentError
	var budgetErr *services.BudgetExceededError
	var dispatchErr *services.DispatchError

	switch {
	case errors.As(err, &valErr):
		response.BadRequest(c, valErr.Error())
	case errors.As(err, &consentErr):
		response.BadRequest(c, consentErr.Error())
	case errors.Is(err, services.ErrNoProviderAvailable):
		response.BadRequest(c, err.Error())
	case errors.As(err, &budgetErr):
		response.PaymentRequired(c, budgetErr.Error())
	case errors.As(err, &dispatchErr):
		response.BadGateway(c, dispatchErr.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// Status returns the current state of a job
// GET /api/status/:job_id
func (h *GenerateHandler) Status(c *gin.Context) {
	job, err := h.tracker.Get(c.Param("job_id"))
	if err != nil {
		response.NotFound(c, "job not found")
		return
	}
	response.Success(c, job)
}

// Cancel aborts a live job and releases its reservation
// POST /api/jobs/:job_id/cancel
func (h *GenerateHandler) Cancel(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := h.tracker.Cancel(jobID); err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			response.NotFound(c, "job not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"job_id": jobID, "state": "FAILED"})
}
