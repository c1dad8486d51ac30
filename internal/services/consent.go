package services

import (
	"strings"
	"time"
)

// Consent scopes. "media:all" covers both media types.
const (
	ScopeImage = "image"
	ScopeVideo = "video"
	ScopeAll   = "media:all"
)

// Consent is the consent payload attached to a generation request.
type Consent struct {
	Granted       bool      `json:"granted"`
	SubjectID     string    `json:"subject_id"`
	Scope         string    `json:"scope"`
	PolicyVersion string    `json:"policy_version"`
	GrantedAt     time.Time `json:"granted_at"`
}

// ConsentGateConfig pins the accepted policy version and the maximum age of
// a consent grant.
type ConsentGateConfig struct {
	PolicyVersion string
	MaxAge        time.Duration
}

func DefaultConsentGateConfig() ConsentGateConfig {
	return ConsentGateConfig{
		PolicyVersion: "2024-02",
		MaxAge:        365 * 24 * time.Hour,
	}
}

// ConsentGate validates explicit, scoped consent before a request is
// admitted. It reads the consent attached to the request and has no side
// effects.
type ConsentGate struct {
	cfg ConsentGateConfig
	now func() time.Time
}

func NewConsentGate(cfg ConsentGateConfig) *ConsentGate {
	return &ConsentGate{cfg: cfg, now: time.Now}
}

// Validate checks that consent is present, current and scoped to the
// requested media type.
func (g *ConsentGate) Validate(consent *Consent, mediaType string) error {
	if consent == nil || !consent.Granted || consent.SubjectID == "" {
		return &ConsentError{Reason: ConsentMissing}
	}

	// A stale policy version means the subject consented to older terms;
	// treat it the same as an aged-out grant.
	if consent.PolicyVersion != g.cfg.PolicyVersion {
		return &ConsentError{Reason: ConsentExpired}
	}
	if consent.GrantedAt.IsZero() || g.now().Sub(consent.GrantedAt) > g.cfg.MaxAge {
		return &ConsentError{Reason: ConsentExpired}
	}

	if !scopeCovers(consent.Scope, mediaType) {
		return &ConsentError{Reason: ConsentScopeMismatch}
	}
	return nil
}

func scopeCovers(scope, mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case ScopeAll:
		return true
	case ScopeImage:
		return mediaType == MediaTypeImage
	case ScopeVideo:
		return mediaType == MediaTypeVideo
	}
	return false
}
