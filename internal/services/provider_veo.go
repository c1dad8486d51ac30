package services

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// VeoClient dispatches video generations through the Gemini API's Veo
// long-running operations.
type VeoClient struct {
	client *genai.Client
}

func NewVeoClient(ctx context.Context, apiKey string) (*VeoClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &VeoClient{client: client}, nil
}

func (c *VeoClient) Dispatch(ctx context.Context, req *DispatchRequest) (string, error) {
	if req.MediaType != MediaTypeVideo {
		return "", fmt.Errorf("veo client supports video only, got %s", req.MediaType)
	}

	op, err := c.client.Models.GenerateVideos(ctx, req.ModelID, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
	if err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", errors.New("veo returned an operation without a name")
	}
	return op.Name, nil
}

func (c *VeoClient) Poll(ctx context.Context, providerJobID string) (*PollResult, error) {
	op, err := c.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: providerJobID}, nil)
	if err != nil {
		return nil, err
	}

	if !op.Done {
		return &PollResult{Status: StatusRunning}, nil
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return &PollResult{Status: StatusFailed, FailureReason: "operation finished without video output"}, nil
	}

	video := op.Response.GeneratedVideos[0].Video
	if video == nil || video.URI == "" {
		return &PollResult{Status: StatusFailed, FailureReason: "video output missing uri"}, nil
	}
	return &PollResult{Status: StatusSucceeded, ResultRef: video.URI}, nil
}

// Cancel is best effort; the Gemini API offers no cancellation for video
// operations, so the job is simply abandoned.
func (c *VeoClient) Cancel(_ context.Context, _ string) error {
	return nil
}
