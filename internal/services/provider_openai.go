package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient dispatches image generations through the OpenAI images API.
// The upstream call is synchronous, so Dispatch stores the outcome and the
// first Poll reports it; this keeps the client behind the same
// dispatch/poll/cancel capability as the asynchronous providers.
type OpenAIClient struct {
	client *openai.Client

	mu      sync.Mutex
	results map[string]*PollResult
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		results: make(map[string]*PollResult),
	}
}

func (c *OpenAIClient) Dispatch(ctx context.Context, req *DispatchRequest) (string, error) {
	if req.MediaType != MediaTypeImage {
		return "", fmt.Errorf("openai client supports images only, got %s", req.MediaType)
	}

	size := openai.CreateImageSize1024x1024
	if req.MaxResolution == "512x512" {
		size = openai.CreateImageSize512x512
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          req.ModelID,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", errors.New("openai returned no image data")
	}

	id := "oai-" + uuid.NewString()
	c.mu.Lock()
	c.results[id] = &PollResult{Status: StatusSucceeded, ResultRef: resp.Data[0].URL}
	c.mu.Unlock()
	return id, nil
}

func (c *OpenAIClient) Poll(_ context.Context, providerJobID string) (*PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.results[providerJobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %s", providerJobID)
	}
	return res, nil
}

// Cancel is a no-op: the synchronous API has nothing left to cancel once
// dispatch returned.
func (c *OpenAIClient) Cancel(_ context.Context, providerJobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, providerJobID)
	return nil
}
