package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/secure-ai-studio/backend/internal/config"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/pkg/logger"
	"gorm.io/gorm"
)

// SubmitRequest is a raw generation request before admission.
type SubmitRequest struct {
	Prompt      string
	MediaType   string
	QualityTier string
	Consent     *Consent
}

// GenerationRequest is the admitted form of a request: consent verified,
// prompt sanitized, provider selected.
type GenerationRequest struct {
	RequestID   string
	Prompt      string
	MediaType   string
	QualityTier string
	ConsentRef  string
}

// Orchestrator composes the consent gate, sanitizer, registry and ledger to
// admit a request, reserve budget and dispatch the external call. The
// reservation strictly precedes dispatch so a billed call can never exist
// without a corresponding hold.
type Orchestrator struct {
	gate      *ConsentGate
	sanitizer *PromptSanitizer
	registry  *ProviderRegistry
	ledger    *BudgetLedger
	tracker   *JobTracker
	clients   map[string]ProviderClient
	usage     *UsageService
	db        *gorm.DB

	dispatchTimeout time.Duration
	requiredTier    string
}

func NewOrchestrator(db *gorm.DB, cfg *config.Config, gate *ConsentGate, sanitizer *PromptSanitizer,
	registry *ProviderRegistry, ledger *BudgetLedger, tracker *JobTracker,
	clients map[string]ProviderClient, usage *UsageService) *Orchestrator {
	timeout := time.Duration(cfg.Polling.DispatchTimeoutSecs * float64(time.Second))
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orchestrator{
		gate:            gate,
		sanitizer:       sanitizer,
		registry:        registry,
		ledger:          ledger,
		tracker:         tracker,
		clients:         clients,
		usage:           usage,
		db:              db,
		dispatchTimeout: timeout,
		requiredTier:    TierStandard,
	}
}

// Submit runs the admission sequence: consent, sanitize, select, reserve,
// dispatch. On dispatch failure the reservation is released before the
// error returns, so the caller may simply resubmit.
func (o *Orchestrator) Submit(ctx context.Context, req *SubmitRequest) (*models.Job, error) {
	mediaType := normalizeMediaType(req.MediaType)
	qualityTier := normalizeQualityTier(req.QualityTier)

	if err := o.gate.Validate(req.Consent, mediaType); err != nil {
		return nil, err
	}
	o.recordConsent(req.Consent)

	cleaned, err := o.sanitizer.Sanitize(req.Prompt)
	if err != nil {
		return nil, err
	}

	provider, model, fallback, err := o.registry.Select(mediaType, qualityTier, o.requiredTier)
	if err != nil {
		return nil, err
	}

	gen := &GenerationRequest{
		RequestID:   uuid.NewString(),
		Prompt:      cleaned,
		MediaType:   mediaType,
		QualityTier: qualityTier,
		ConsentRef:  req.Consent.SubjectID,
	}

	jobID := uuid.NewString()
	if err := o.ledger.Reserve(jobID, model.UnitCostCents); err != nil {
		return nil, err
	}

	client := o.clients[provider.ID]
	if client == nil {
		o.ledger.Release(jobID)
		return nil, ErrNoProviderAvailable
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
	defer cancel()

	start := time.Now()
	providerJobID, err := client.Dispatch(dispatchCtx, &DispatchRequest{
		Prompt:        gen.Prompt,
		ModelID:       model.ID,
		MediaType:     mediaType,
		MaxResolution: model.MaxResolution,
	})
	latency := time.Since(start)

	if err != nil {
		o.ledger.Release(jobID)
		if o.usage != nil {
			o.usage.Record(jobID, provider.ID, model.ID, mediaType, model.UnitCostCents, latency, false, fallback)
		}
		return nil, &DispatchError{Provider: provider.ID, Err: err}
	}

	job := &models.Job{
		JobID:         jobID,
		RequestID:     gen.RequestID,
		Prompt:        gen.Prompt,
		MediaType:     mediaType,
		QualityTier:   qualityTier,
		ProviderID:    provider.ID,
		ModelID:       model.ID,
		ProviderJobID: providerJobID,
		State:         models.JobStateDispatched,
		ReservedCents: model.UnitCostCents,
		CreatedAt:     time.Now(),
	}

	if o.db != nil {
		if err := o.db.Create(job).Error; err != nil {
			logger.Errorf("[Orchestrator] Failed to persist job %s: %v", jobID, err)
		}
	}
	if o.usage != nil {
		o.usage.Record(jobID, provider.ID, model.ID, mediaType, model.UnitCostCents, latency, true, fallback)
	}

	logger.Info().
		Str("job_id", jobID).
		Str("provider", provider.ID).
		Str("model", model.ID).
		Int64("cost_cents", model.UnitCostCents).
		Msg("[Orchestrator] dispatched")

	// The tracker's watcher mutates the job from here on; the caller gets a
	// snapshot taken before the handoff.
	snapshot := *job
	o.tracker.Track(job)
	return &snapshot, nil
}

// recordConsent keeps an audit trail of every accepted grant.
func (o *Orchestrator) recordConsent(consent *Consent) {
	if o.db == nil {
		return
	}
	record := &models.ConsentRecord{
		SubjectID:     consent.SubjectID,
		Scope:         consent.Scope,
		PolicyVersion: consent.PolicyVersion,
		GrantedAt:     consent.GrantedAt,
	}
	if err := o.db.Create(record).Error; err != nil {
		logger.Warnf("[Orchestrator] Failed to record consent for %s: %v", consent.SubjectID, err)
	}
}

func normalizeMediaType(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case MediaTypeVideo, "":
		return MediaTypeVideo
	case MediaTypeImage:
		return MediaTypeImage
	default:
		return strings.ToUpper(strings.TrimSpace(s))
	}
}

func normalizeQualityTier(s string) string {
	if strings.ToUpper(strings.TrimSpace(s)) == QualityPremium {
		return QualityPremium
	}
	return QualityEconomy
}
