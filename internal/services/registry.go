package services

import (
	"sort"
	"sync"

	"github.com/secure-ai-studio/backend/pkg/logger"
)

// Media types and quality tiers accepted by the gateway.
const (
	MediaTypeImage = "IMAGE"
	MediaTypeVideo = "VIDEO"

	QualityEconomy = "ECONOMY"
	QualityPremium = "PREMIUM"
)

// Compliance tiers, strongest first. A request requiring STANDARD accepts
// ZERO_RETENTION providers but never UNVERIFIED ones.
const (
	TierZeroRetention = "ZERO_RETENTION"
	TierStandard      = "STANDARD"
	TierUnverified    = "UNVERIFIED"
)

var tierRank = map[string]int{
	TierZeroRetention: 2,
	TierStandard:      1,
	TierUnverified:    0,
}

// Provider describes one external generation provider and its catalog.
type Provider struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Tier   string      `json:"compliance_tier"`
	Models []ModelSpec `json:"models"`
}

// ModelSpec describes one billable model offered by a provider.
type ModelSpec struct {
	ID            string `json:"id"`
	ProviderID    string `json:"provider_id"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	MediaType     string `json:"media_type"`
	MaxResolution string `json:"max_resolution"`
	Premium       bool   `json:"premium"`
}

// ProviderRegistry is the static catalog of providers with deterministic
// selection. Outage flags are the only mutable state.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
	outages   map[string]bool
}

func NewProviderRegistry(providers []Provider) *ProviderRegistry {
	r := &ProviderRegistry{
		providers: make(map[string]*Provider, len(providers)),
		outages:   make(map[string]bool),
	}
	for i := range providers {
		p := providers[i]
		r.providers[p.ID] = &p
	}
	return r
}

// SetOutage flags or clears an outage for a provider.
func (r *ProviderRegistry) SetOutage(providerID string, down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outages[providerID] = down
}

// List returns the catalog sorted by provider id.
func (r *ProviderRegistry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type candidate struct {
	provider *Provider
	model    ModelSpec
}

// Select picks a provider/model for the request. ECONOMY chooses minimum
// unit cost, PREMIUM chooses the flagged premium model; ties break by
// ascending provider id so selection is deterministic. If the winner is
// flagged as an outage the next-cheapest compliant alternative is chosen;
// the returned fallback flag reports that so the caller can record the
// substitution against the job.
func (r *ProviderRegistry) Select(mediaType, qualityTier, requiredTier string) (*Provider, *ModelSpec, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	required, ok := tierRank[requiredTier]
	if !ok {
		required = tierRank[TierStandard]
	}

	var candidates []candidate
	for _, p := range r.providers {
		if tierRank[p.Tier] < required {
			continue
		}
		for _, m := range p.Models {
			if m.MediaType != mediaType {
				continue
			}
			if qualityTier == QualityPremium && !m.Premium {
				continue
			}
			candidates = append(candidates, candidate{provider: p, model: m})
		}
	}
	if len(candidates) == 0 {
		return nil, nil, false, ErrNoProviderAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].model.UnitCostCents != candidates[j].model.UnitCostCents {
			return candidates[i].model.UnitCostCents < candidates[j].model.UnitCostCents
		}
		return candidates[i].provider.ID < candidates[j].provider.ID
	})

	primary := candidates[0]
	if !r.outages[primary.provider.ID] {
		m := primary.model
		return primary.provider, &m, false, nil
	}

	for _, c := range candidates[1:] {
		if r.outages[c.provider.ID] {
			continue
		}
		logger.Warn().
			Str("requested", primary.provider.ID).
			Str("selected", c.provider.ID).
			Str("media_type", mediaType).
			Msg("[Registry] FallbackUsed")
		m := c.model
		return c.provider, &m, true, nil
	}

	return nil, nil, false, ErrNoProviderAvailable
}

// DefaultCatalog is the built-in provider catalog with unit costs taken from
// the upstream price sheets.
func DefaultCatalog() []Provider {
	return []Provider{
		{
			ID:   "google",
			Name: "Google Veo",
			Tier: TierZeroRetention,
			Models: []ModelSpec{
				{ID: "veo-3-fast", ProviderID: "google", UnitCostCents: 10, MediaType: MediaTypeVideo, MaxResolution: "720p", Premium: true},
			},
		},
		{
			ID:   "luma",
			Name: "Luma AI",
			Tier: TierStandard,
			Models: []ModelSpec{
				{ID: "dream-machine", ProviderID: "luma", UnitCostCents: 2, MediaType: MediaTypeVideo, MaxResolution: "720p"},
				{ID: "photon", ProviderID: "luma", UnitCostCents: 2, MediaType: MediaTypeImage, MaxResolution: "1024x1024"},
			},
		},
		{
			ID:   "openai",
			Name: "OpenAI Images",
			Tier: TierStandard,
			Models: []ModelSpec{
				{ID: "dall-e-2", ProviderID: "openai", UnitCostCents: 1, MediaType: MediaTypeImage, MaxResolution: "512x512"},
				{ID: "dall-e-3", ProviderID: "openai", UnitCostCents: 4, MediaType: MediaTypeImage, MaxResolution: "1024x1024", Premium: true},
			},
		},
		{
			ID:   "kling",
			Name: "Kling",
			Tier: TierUnverified,
			Models: []ModelSpec{
				{ID: "kling-v1", ProviderID: "kling", UnitCostCents: 1, MediaType: MediaTypeVideo, MaxResolution: "720p"},
			},
		},
	}
}
