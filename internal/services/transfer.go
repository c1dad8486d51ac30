package services

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/secure-ai-studio/backend/internal/config"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/internal/utils"
	"github.com/secure-ai-studio/backend/pkg/logger"
	"gorm.io/gorm"
)

// File types accepted for upload.
var allowedUploadExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
	".mp4": true, ".mov": true, ".avi": true,
}

// UploadMeta describes a file a client wants to upload as generation input.
type UploadMeta struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// SecureTransferManager issues time-limited access to results and enforces
// deletion on a fixed retention schedule. Retention is fail-closed: once an
// object's TTL elapses it is unreachable whether or not the sweep has
// removed it yet, and an object found reachable past TTL raises a retention
// violation that is never swallowed.
type SecureTransferManager struct {
	cfg config.StorageConfig
	ttl time.Duration
	db  *gorm.DB
	now func() time.Time

	mu      sync.Mutex
	objects map[string]*models.StorageObject
}

func NewSecureTransferManager(db *gorm.DB, cfg config.StorageConfig) *SecureTransferManager {
	m := &SecureTransferManager{
		cfg:     cfg,
		ttl:     time.Duration(cfg.TTLSeconds) * time.Second,
		db:      db,
		now:     time.Now,
		objects: make(map[string]*models.StorageObject),
	}
	if db != nil {
		var stored []models.StorageObject
		if err := db.Where("deleted_at IS NULL").Find(&stored).Error; err != nil {
			logger.Errorf("[Transfer] Failed to reload storage objects: %v", err)
		} else {
			m.restoreObjects(stored)
		}
	}
	return m
}

// restoreObjects reloads undeleted objects so results issued before a
// restart stay resolvable for the remainder of their TTL. Objects already
// past TTL are left to the sweep.
func (m *SecureTransferManager) restoreObjects(stored []models.StorageObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range stored {
		obj := stored[i]
		m.objects[obj.ObjectID] = &obj
	}
}

// IssueUploadURL validates the upload before granting a pre-signed URL for
// it. Oversized files and unsupported types are rejected up front.
func (m *SecureTransferManager) IssueUploadURL(meta *UploadMeta) (string, error) {
	ext := strings.ToLower(filepath.Ext(meta.Filename))
	if !allowedUploadExts[ext] {
		return "", &ValidationError{Reason: ValidationType, Detail: fmt.Sprintf("file type %q not allowed", ext)}
	}
	if meta.SizeBytes <= 0 || meta.SizeBytes > m.cfg.MaxUploadMB*1024*1024 {
		return "", &ValidationError{Reason: ValidationSize, Detail: "file size out of range"}
	}

	// Random object name prevents enumeration of uploads.
	objectID := uuid.NewString() + ext
	token, err := utils.GenerateObjectToken(objectID, utils.PurposeUpload, m.ttl)
	if err != nil {
		return "", err
	}
	return m.cfg.BaseURL + "/files/" + token, nil
}

// RegisterResult stores a generation result behind a TTL-bound pre-signed
// URL. The TTL starts now, at registration.
func (m *SecureTransferManager) RegisterResult(jobID, contentRef string) (*models.StorageObject, string, error) {
	obj := &models.StorageObject{
		ObjectID:   uuid.NewString(),
		OwnerJobID: jobID,
		ContentRef: contentRef,
		ExpiresAt:  m.now().Add(m.ttl),
		CreatedAt:  m.now(),
	}

	m.mu.Lock()
	m.objects[obj.ObjectID] = obj
	m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Create(obj).Error; err != nil {
			return nil, "", err
		}
	}

	token, err := utils.GenerateObjectToken(obj.ObjectID, utils.PurposeDownload, m.ttl)
	if err != nil {
		return nil, "", err
	}
	return obj, m.cfg.BaseURL + "/files/" + token, nil
}

// Resolve exchanges a pre-signed URL token for the object's content
// reference. Expired, deleted and unknown objects all resolve to
// ErrObjectNotFound so a caller cannot distinguish them.
func (m *SecureTransferManager) Resolve(token string) (string, error) {
	claims, err := utils.ParseObjectToken(token)
	if err != nil {
		return "", ErrObjectNotFound
	}
	if claims.Purpose != utils.PurposeDownload {
		return "", ErrObjectNotFound
	}

	m.mu.Lock()
	obj, ok := m.objects[claims.ObjectID]
	m.mu.Unlock()
	if !ok || obj.DeletedAt != nil {
		return "", ErrObjectNotFound
	}

	if !m.now().Before(obj.ExpiresAt) {
		// The object outlived its TTL without being swept. Retention is
		// fail-closed, so the caller still gets not-found, but the breach
		// itself must surface for alerting.
		violation := &RetentionViolationError{ObjectID: obj.ObjectID}
		logger.Error().Str("object_id", obj.ObjectID).Str("job_id", obj.OwnerJobID).
			Msg("[Transfer] " + violation.Error())
		m.deleteObject(obj)
		return "", ErrObjectNotFound
	}

	return obj.ContentRef, nil
}

// Sweep deletes every object past its TTL. It runs on a schedule,
// independent of the request path, and returns the number of objects
// removed.
func (m *SecureTransferManager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []*models.StorageObject
	for _, obj := range m.objects {
		if obj.DeletedAt == nil && !now.Before(obj.ExpiresAt) {
			expired = append(expired, obj)
		}
	}
	m.mu.Unlock()

	for _, obj := range expired {
		m.deleteObject(obj)
	}

	if len(expired) > 0 {
		logger.Infof("[Transfer] Sweep removed %d expired objects", len(expired))
	}
	return len(expired)
}

// Get returns the object record for a job's result, if any survives.
func (m *SecureTransferManager) Get(objectID string) (*models.StorageObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[objectID]
	if !ok || obj.DeletedAt != nil {
		return nil, false
	}
	return obj, true
}

func (m *SecureTransferManager) deleteObject(obj *models.StorageObject) {
	now := m.now()

	m.mu.Lock()
	obj.DeletedAt = &now
	m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Model(&models.StorageObject{}).Where("object_id = ?", obj.ObjectID).
			Update("deleted_at", now).Error; err != nil {
			logger.Errorf("[Transfer] Failed to persist deletion of %s: %v", obj.ObjectID, err)
		}
	}
}
