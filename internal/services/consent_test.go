package services

import (
	"errors"
	"testing"
	"time"
)

func validConsent() *Consent {
	return &Consent{
		Granted:       true,
		SubjectID:     "subject-1",
		Scope:         ScopeVideo,
		PolicyVersion: "2024-02",
		GrantedAt:     time.Now().Add(-time.Hour),
	}
}

func TestConsentGate_Validate(t *testing.T) {
	gate := NewConsentGate(DefaultConsentGateConfig())

	tests := []struct {
		name      string
		consent   *Consent
		mediaType string
		reason    string // empty means accepted
	}{
		{"valid video consent", validConsent(), MediaTypeVideo, ""},
		{"nil consent", nil, MediaTypeVideo, ConsentMissing},
		{"not granted", &Consent{SubjectID: "s", Scope: ScopeVideo, PolicyVersion: "2024-02", GrantedAt: time.Now()}, MediaTypeVideo, ConsentMissing},
		{"missing subject", &Consent{Granted: true, Scope: ScopeVideo, PolicyVersion: "2024-02", GrantedAt: time.Now()}, MediaTypeVideo, ConsentMissing},
		{"stale policy version", &Consent{Granted: true, SubjectID: "s", Scope: ScopeVideo, PolicyVersion: "2023-07", GrantedAt: time.Now()}, MediaTypeVideo, ConsentExpired},
		{"image scope for video request", &Consent{Granted: true, SubjectID: "s", Scope: ScopeImage, PolicyVersion: "2024-02", GrantedAt: time.Now()}, MediaTypeVideo, ConsentScopeMismatch},
		{"media:all covers image", &Consent{Granted: true, SubjectID: "s", Scope: ScopeAll, PolicyVersion: "2024-02", GrantedAt: time.Now()}, MediaTypeImage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Validate(tt.consent, tt.mediaType)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("want accepted, got %v", err)
				}
				return
			}
			var consentErr *ConsentError
			if !errors.As(err, &consentErr) {
				t.Fatalf("want ConsentError, got %v", err)
			}
			if consentErr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", consentErr.Reason, tt.reason)
			}
		})
	}
}

func TestConsentGate_AgedOutGrantExpires(t *testing.T) {
	gate := NewConsentGate(DefaultConsentGateConfig())
	gate.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	consent := &Consent{
		Granted:       true,
		SubjectID:     "subject-1",
		Scope:         ScopeVideo,
		PolicyVersion: "2024-02",
		GrantedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := gate.Validate(consent, MediaTypeVideo)
	var consentErr *ConsentError
	if !errors.As(err, &consentErr) || consentErr.Reason != ConsentExpired {
		t.Fatalf("grant older than a year should expire, got %v", err)
	}
}
