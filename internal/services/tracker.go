package services

import (
	"context"
	"sync"
	"time"

	"github.com/secure-ai-studio/backend/internal/config"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/pkg/logger"
	"gorm.io/gorm"
)

// JobTracker drives every active job from DISPATCHED through POLLING to a
// terminal state. Each job gets one cancellable goroutine; a global
// semaphore caps how many polls run concurrently so active jobs never grow
// goroutine use unboundedly. Waiting between polls never blocks other jobs.
//
// Reservation resolution policy at terminal states:
//   - SUCCEEDED: commit, then register the result for retrieval.
//   - FAILED: release, record the provider's reason.
//   - EXPIRED (max total wait exceeded after a successful dispatch): commit.
//     The provider may well have charged for the work; treating an ambiguous
//     charge as spent keeps the ledger conservative.
type JobTracker struct {
	cfg      config.PollingConfig
	ledger   *BudgetLedger
	transfer *SecureTransferManager
	clients  map[string]ProviderClient
	db       *gorm.DB

	sem chan struct{}

	mu      sync.Mutex
	jobs    map[string]*models.Job
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewJobTracker(db *gorm.DB, cfg config.PollingConfig, ledger *BudgetLedger,
	transfer *SecureTransferManager, clients map[string]ProviderClient) *JobTracker {
	maxPolls := cfg.MaxConcurrent
	if maxPolls <= 0 {
		maxPolls = 16
	}
	return &JobTracker{
		cfg:      cfg,
		ledger:   ledger,
		transfer: transfer,
		clients:  clients,
		db:       db,
		sem:      make(chan struct{}, maxPolls),
		jobs:     make(map[string]*models.Job),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Track takes ownership of a freshly dispatched job and polls it to a
// terminal state in the background.
func (t *JobTracker) Track(job *models.Job) {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.jobs[job.JobID] = job
	t.cancels[job.JobID] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.watch(ctx, job)
}

// Get returns a snapshot of the tracked job, falling back to the database
// for jobs that finished before a restart. The copy is taken under the
// tracker lock so callers never observe a watcher mutation mid-flight.
func (t *JobTracker) Get(jobID string) (*models.Job, error) {
	t.mu.Lock()
	if job, ok := t.jobs[jobID]; ok {
		snapshot := *job
		t.mu.Unlock()
		return &snapshot, nil
	}
	t.mu.Unlock()

	if t.db != nil {
		var stored models.Job
		if err := t.db.Where("job_id = ?", jobID).First(&stored).Error; err == nil {
			return &stored, nil
		}
	}
	return nil, ErrJobNotFound
}

// Cancel stops tracking a job: the provider is asked to cancel (best
// effort) and the reservation is released unconditionally.
func (t *JobTracker) Cancel(jobID string) error {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	cancel := t.cancels[jobID]
	if !ok {
		t.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Terminal() {
		t.mu.Unlock()
		return nil
	}
	providerID, providerJobID := job.ProviderID, job.ProviderJobID
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	client := t.clients[providerID]
	if client != nil && providerJobID != "" {
		ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := client.Cancel(ctx, providerJobID); err != nil {
			logger.Warnf("[Tracker] Provider-side cancel for %s failed: %v", jobID, err)
		}
	}

	t.ledger.Release(jobID)
	t.finalize(job, models.JobStateFailed, "cancelled by caller", "")
	return nil
}

// ActiveCount reports how many tracked jobs are not yet terminal.
func (t *JobTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, job := range t.jobs {
		if !job.Terminal() {
			n++
		}
	}
	return n
}

// Shutdown cancels all watchers and waits for them to exit.
func (t *JobTracker) Shutdown() {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// PurgeTerminalBefore removes terminal jobs older than the cutoff from
// memory and the database. Jobs persist through a grace period after
// finishing so status polling keeps working.
func (t *JobTracker) PurgeTerminalBefore(cutoff time.Time) int {
	t.mu.Lock()
	var purged int
	for id, job := range t.jobs {
		if job.Terminal() && job.TerminalAt != nil && job.TerminalAt.Before(cutoff) {
			delete(t.jobs, id)
			delete(t.cancels, id)
			purged++
		}
	}
	t.mu.Unlock()

	if t.db != nil {
		res := t.db.Where("terminal_at IS NOT NULL AND terminal_at < ?", cutoff).Delete(&models.Job{})
		if res.Error != nil {
			logger.Errorf("[Tracker] Failed to purge terminal jobs: %v", res.Error)
		}
	}
	return purged
}

func (t *JobTracker) watch(ctx context.Context, job *models.Job) {
	defer t.wg.Done()

	client := t.clients[job.ProviderID]
	if client == nil {
		t.ledger.Release(job.JobID)
		t.finalize(job, models.JobStateFailed, "no client for provider "+job.ProviderID, "")
		return
	}

	interval := time.Duration(t.cfg.BaseIntervalSeconds * float64(time.Second))
	maxInterval := time.Duration(t.cfg.MaxIntervalSeconds * float64(time.Second))
	deadline := time.Now().Add(time.Duration(t.cfg.MaxTotalWaitSeconds * float64(time.Second)))

	t.setState(job, models.JobStatePolling)

	for {
		select {
		case <-ctx.Done():
			// Cancel resolves the reservation; nothing more to do here.
			return
		case <-time.After(interval):
		}

		if time.Now().After(deadline) {
			logger.Warnf("[Tracker] Job %s exceeded max total wait, expiring", job.JobID)
			t.ledger.Commit(job.JobID)
			t.finalize(job, models.JobStateExpired, "provider did not finish within max wait", "")
			return
		}

		result, err := t.poll(ctx, client, job)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.mu.Lock()
			job.RetryCount++
			attempt := job.RetryCount
			t.mu.Unlock()
			logger.Warnf("[Tracker] Poll for %s failed (attempt %d): %v", job.JobID, attempt, err)
		} else if done := t.apply(job, result); done {
			return
		}

		interval = time.Duration(float64(interval) * t.cfg.Multiplier)
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}

// poll performs one provider poll under the global concurrency cap.
func (t *JobTracker) poll(ctx context.Context, client ProviderClient, job *models.Job) (*PollResult, error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-t.sem }()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return client.Poll(pollCtx, job.ProviderJobID)
}

// apply folds one poll result into the job. Returns true when the job
// reached a terminal state.
func (t *JobTracker) apply(job *models.Job, result *PollResult) bool {
	t.mu.Lock()
	terminal := job.Terminal()
	t.mu.Unlock()
	if terminal {
		return true
	}

	switch result.Status {
	case StatusPending, StatusRunning:
		return false

	case StatusSucceeded:
		t.ledger.Commit(job.JobID)
		resultURL := ""
		if t.transfer != nil {
			obj, url, err := t.transfer.RegisterResult(job.JobID, result.ResultRef)
			if err != nil {
				logger.Errorf("[Tracker] Failed to register result for %s: %v", job.JobID, err)
			} else {
				t.mu.Lock()
				job.ResultObjectID = obj.ObjectID
				t.mu.Unlock()
				resultURL = url
			}
		}
		t.finalize(job, models.JobStateSucceeded, "", resultURL)
		return true

	case StatusFailed:
		t.ledger.Release(job.JobID)
		t.finalize(job, models.JobStateFailed, result.FailureReason, "")
		return true
	}
	return false
}

func (t *JobTracker) setState(job *models.Job, state string) {
	t.mu.Lock()
	job.State = state
	t.mu.Unlock()
	t.persist(job)
}

func (t *JobTracker) finalize(job *models.Job, state, reason, resultURL string) {
	now := time.Now()

	t.mu.Lock()
	if job.Terminal() {
		t.mu.Unlock()
		return
	}
	job.State = state
	job.FailureReason = reason
	if resultURL != "" {
		job.ResultURL = resultURL
	}
	job.TerminalAt = &now
	t.mu.Unlock()

	t.persist(job)
	logger.Info().
		Str("job_id", job.JobID).
		Str("state", state).
		Str("provider", job.ProviderID).
		Msg("[Tracker] job finished")
}

func (t *JobTracker) persist(job *models.Job) {
	if t.db == nil {
		return
	}
	t.mu.Lock()
	snapshot := *job
	t.mu.Unlock()
	if err := t.db.Save(&snapshot).Error; err != nil {
		logger.Errorf("[Tracker] Failed to persist job %s: %v", snapshot.JobID, err)
	}
}
