package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	GenerationSubmittedMessage = "Successfully submitted prompt. New images will appear in about 7 minutes."
	GenerationErrorMessage     = "An error occurred while generating the image"
)

type GenerationSubmitter interface {
	Submit(ctx context.Context, request *GenerationRequest) error
}

// GenerationClient posts text-to-image jobs to the remote job queue. It never
// waits for the job itself.
type GenerationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ GenerationSubmitter = (*GenerationClient)(nil)

func NewGenerationClient(config GenerationConfig, httpClient *http.Client) *GenerationClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GenerationClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}
}

func (c *GenerationClient) Submit(ctx context.Context, request *GenerationRequest) error {
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/text-to-image", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit generation job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RemoteError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	return nil
}

// NewGenerationRequest fills in the fixed job parameters around the encoded prompt.
func NewGenerationRequest(config GenerationConfig, prompt string) *GenerationRequest {
	return &GenerationRequest{
		Prompt:      EncodePrompt(prompt),
		ExhibitName: config.ExhibitName,
		Samples:     config.Samples,
		Seed:        config.Seed,
	}
}
