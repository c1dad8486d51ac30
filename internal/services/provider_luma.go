package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultLumaBaseURL = "https://api.lumalabs.ai/dream-machine/v1"

// LumaClient talks to the Luma Dream Machine generations API.
type LumaClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewLumaClient(apiKey, baseURL string) *LumaClient {
	if baseURL == "" {
		baseURL = defaultLumaBaseURL
	}
	return &LumaClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type lumaGeneration struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video string `json:"video"`
		Image string `json:"image"`
	} `json:"assets"`
}

func (c *LumaClient) Dispatch(ctx context.Context, req *DispatchRequest) (string, error) {
	payload := map[string]interface{}{
		"prompt": req.Prompt,
		"model":  req.ModelID,
	}

	var gen lumaGeneration
	if err := c.do(ctx, http.MethodPost, "/generations", payload, &gen); err != nil {
		return "", err
	}
	if gen.ID == "" {
		return "", fmt.Errorf("luma returned no generation id")
	}
	return gen.ID, nil
}

func (c *LumaClient) Poll(ctx context.Context, providerJobID string) (*PollResult, error) {
	var gen lumaGeneration
	if err := c.do(ctx, http.MethodGet, "/generations/"+providerJobID, nil, &gen); err != nil {
		return nil, err
	}

	// Map the Dream Machine vocabulary onto canonical statuses.
	switch gen.State {
	case "queued":
		return &PollResult{Status: StatusPending}, nil
	case "dreaming", "processing":
		return &PollResult{Status: StatusRunning}, nil
	case "completed":
		ref := gen.Assets.Video
		if ref == "" {
			ref = gen.Assets.Image
		}
		if ref == "" {
			return &PollResult{Status: StatusFailed, FailureReason: "generation completed without assets"}, nil
		}
		return &PollResult{Status: StatusSucceeded, ResultRef: ref}, nil
	case "failed":
		reason := gen.FailureReason
		if reason == "" {
			reason = "provider reported failure"
		}
		return &PollResult{Status: StatusFailed, FailureReason: reason}, nil
	default:
		return nil, fmt.Errorf("unknown luma state %q", gen.State)
	}
}

func (c *LumaClient) Cancel(ctx context.Context, providerJobID string) error {
	return c.do(ctx, http.MethodDelete, "/generations/"+providerJobID, nil, nil)
}

func (c *LumaClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("luma api %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
