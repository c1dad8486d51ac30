package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/secure-ai-studio/backend/internal/config"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/internal/utils"
)

func init() {
	utils.SetSigningSecret("transfer-test-secret")
}

func newTestTransfer(ttlSeconds int) *SecureTransferManager {
	return NewSecureTransferManager(nil, config.StorageConfig{
		TTLSeconds:  ttlSeconds,
		MaxUploadMB: 50,
		BaseURL:     "http://localhost:8080",
	})
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	const prefix = "http://localhost:8080/files/"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected presigned URL %q", url)
	}
	return strings.TrimPrefix(url, prefix)
}

func TestTransfer_ResultResolvableWithinTTL(t *testing.T) {
	m := newTestTransfer(60)
	base := time.Now()
	m.now = func() time.Time { return base }

	_, url, err := m.RegisterResult("job-1", "results/output.mp4")
	if err != nil {
		t.Fatalf("RegisterResult: %v", err)
	}
	token := tokenFromURL(t, url)

	m.now = func() time.Time { return base.Add(10 * time.Second) }
	ref, err := m.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve at t+10s: %v", err)
	}
	if ref != "results/output.mp4" {
		t.Errorf("content ref = %q", ref)
	}
}

func TestTransfer_ExpiredResultUnreachable(t *testing.T) {
	m := newTestTransfer(60)
	base := time.Now()
	m.now = func() time.Time { return base }

	obj, url, err := m.RegisterResult("job-1", "results/output.mp4")
	if err != nil {
		t.Fatalf("RegisterResult: %v", err)
	}
	token := tokenFromURL(t, url)

	// Past TTL, even before the sweep runs, the object must be gone.
	m.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, err := m.Resolve(token); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expired object must resolve to not-found, got %v", err)
	}
	if _, ok := m.Get(obj.ObjectID); ok {
		t.Error("expired object should be deleted after the failed resolve")
	}
}

func TestTransfer_RestoredObjectsResolvable(t *testing.T) {
	m := newTestTransfer(60)
	base := time.Now()
	m.now = func() time.Time { return base }

	// A fresh manager seeded from stored rows must serve objects whose TTL
	// has not elapsed, exactly as if they had been registered here.
	m.restoreObjects([]models.StorageObject{
		{ObjectID: "live-1", OwnerJobID: "job-1", ContentRef: "results/a.mp4", ExpiresAt: base.Add(30 * time.Second), CreatedAt: base.Add(-30 * time.Second)},
		{ObjectID: "stale-1", OwnerJobID: "job-2", ContentRef: "results/b.mp4", ExpiresAt: base.Add(-time.Second), CreatedAt: base.Add(-2 * time.Minute)},
	})

	token, err := utils.GenerateObjectToken("live-1", utils.PurposeDownload, time.Minute)
	if err != nil {
		t.Fatalf("GenerateObjectToken: %v", err)
	}
	ref, err := m.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve restored object: %v", err)
	}
	if ref != "results/a.mp4" {
		t.Errorf("content ref = %q", ref)
	}

	staleToken, err := utils.GenerateObjectToken("stale-1", utils.PurposeDownload, time.Minute)
	if err != nil {
		t.Fatalf("GenerateObjectToken: %v", err)
	}
	if _, err := m.Resolve(staleToken); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("restored object past TTL must stay unreachable, got %v", err)
	}
	// The failed resolve already removed the stale object, so the sweep has
	// nothing left to collect.
	if n := m.Sweep(); n != 0 {
		t.Errorf("sweep after the failed resolve should find nothing, got %d", n)
	}
}

func TestTransfer_SweepRemovesExpiredOnly(t *testing.T) {
	m := newTestTransfer(60)
	base := time.Now()
	m.now = func() time.Time { return base }

	old, _, err := m.RegisterResult("job-old", "results/old.mp4")
	if err != nil {
		t.Fatalf("RegisterResult: %v", err)
	}

	m.now = func() time.Time { return base.Add(30 * time.Second) }
	fresh, _, err := m.RegisterResult("job-fresh", "results/fresh.mp4")
	if err != nil {
		t.Fatalf("RegisterResult: %v", err)
	}

	m.now = func() time.Time { return base.Add(70 * time.Second) }
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d objects, want 1", n)
	}
	if _, ok := m.Get(old.ObjectID); ok {
		t.Error("expired object survived the sweep")
	}
	if _, ok := m.Get(fresh.ObjectID); !ok {
		t.Error("live object was swept")
	}
}

func TestTransfer_ResolveRejectsGarbageAndWrongPurpose(t *testing.T) {
	m := newTestTransfer(60)

	if _, err := m.Resolve("not-a-token"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("garbage token: got %v", err)
	}

	// Upload tokens must not grant downloads.
	uploadToken, err := utils.GenerateObjectToken("some-object", utils.PurposeUpload, time.Minute)
	if err != nil {
		t.Fatalf("GenerateObjectToken: %v", err)
	}
	if _, err := m.Resolve(uploadToken); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("upload token: got %v", err)
	}
}

func TestTransfer_IssueUploadURLValidation(t *testing.T) {
	m := newTestTransfer(60)

	tests := []struct {
		name   string
		meta   UploadMeta
		reason string // empty means accepted
	}{
		{"valid image", UploadMeta{Filename: "input.png", SizeBytes: 1024}, ""},
		{"valid video", UploadMeta{Filename: "clip.mp4", SizeBytes: 10 << 20}, ""},
		{"executable", UploadMeta{Filename: "payload.exe", SizeBytes: 1024}, ValidationType},
		{"no extension", UploadMeta{Filename: "README", SizeBytes: 1024}, ValidationType},
		{"oversized", UploadMeta{Filename: "huge.mp4", SizeBytes: 51 << 20}, ValidationSize},
		{"zero size", UploadMeta{Filename: "empty.png", SizeBytes: 0}, ValidationSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := m.IssueUploadURL(&tt.meta)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("want accepted, got %v", err)
				}
				if !strings.HasPrefix(url, "http://localhost:8080/files/") {
					t.Errorf("unexpected upload URL %q", url)
				}
				return
			}
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if valErr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", valErr.Reason, tt.reason)
			}
		})
	}
}
