package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Canonical provider job statuses. Every provider-specific vocabulary is
// mapped onto these four values.
type ProviderStatus string

const (
	StatusPending   ProviderStatus = "PENDING"
	StatusRunning   ProviderStatus = "RUNNING"
	StatusSucceeded ProviderStatus = "SUCCEEDED"
	StatusFailed    ProviderStatus = "FAILED"
)

// DispatchRequest carries everything a provider client needs to start a
// generation.
type DispatchRequest struct {
	Prompt        string
	ModelID       string
	MediaType     string
	MaxResolution string
}

// PollResult is the canonical outcome of one status poll.
type PollResult struct {
	Status        ProviderStatus
	ResultRef     string // content reference, set when Status is SUCCEEDED
	FailureReason string // set when Status is FAILED
}

// ProviderClient is the capability interface implemented once per provider.
type ProviderClient interface {
	// Dispatch starts a generation and returns the provider's job id.
	Dispatch(ctx context.Context, req *DispatchRequest) (string, error)
	// Poll reports the current status of a previously dispatched job.
	Poll(ctx context.Context, providerJobID string) (*PollResult, error)
	// Cancel asks the provider to stop a job. Best effort; errors are advisory.
	Cancel(ctx context.Context, providerJobID string) error
}

// SimulatedClient is a deterministic in-process provider used when no API
// credentials are configured, and by tests. Each dispatched job reports
// RUNNING for a fixed number of polls and then completes.
type SimulatedClient struct {
	providerID   string
	pollsToDone  int
	failAll      bool
	dispatchErr  error
	mu           sync.Mutex
	polls        map[string]int
	cancelled    map[string]bool
}

func NewSimulatedClient(providerID string) *SimulatedClient {
	return &SimulatedClient{
		providerID:  providerID,
		pollsToDone: 2,
		polls:       make(map[string]int),
		cancelled:   make(map[string]bool),
	}
}

// WithPollsToDone sets how many polls a job reports RUNNING before finishing.
func (c *SimulatedClient) WithPollsToDone(n int) *SimulatedClient {
	c.pollsToDone = n
	return c
}

// WithFailure makes every job finish as FAILED.
func (c *SimulatedClient) WithFailure() *SimulatedClient {
	c.failAll = true
	return c
}

// WithDispatchError makes Dispatch itself fail.
func (c *SimulatedClient) WithDispatchError(err error) *SimulatedClient {
	c.dispatchErr = err
	return c
}

func (c *SimulatedClient) Dispatch(_ context.Context, req *DispatchRequest) (string, error) {
	if c.dispatchErr != nil {
		return "", c.dispatchErr
	}
	id := "sim-" + uuid.NewString()
	c.mu.Lock()
	c.polls[id] = 0
	c.mu.Unlock()
	return id, nil
}

func (c *SimulatedClient) Poll(_ context.Context, providerJobID string) (*PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.polls[providerJobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %s", providerJobID)
	}
	if c.cancelled[providerJobID] {
		return &PollResult{Status: StatusFailed, FailureReason: "cancelled"}, nil
	}

	c.polls[providerJobID] = n + 1
	if n+1 < c.pollsToDone {
		return &PollResult{Status: StatusRunning}, nil
	}
	if c.failAll {
		return &PollResult{Status: StatusFailed, FailureReason: "simulated provider failure"}, nil
	}
	return &PollResult{
		Status:    StatusSucceeded,
		ResultRef: fmt.Sprintf("https://simulated.%s.local/results/%s", c.providerID, providerJobID),
	}, nil
}

func (c *SimulatedClient) Cancel(_ context.Context, providerJobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled[providerJobID] = true
	return nil
}
