package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RemoteError is a business error reported by a remote service together with
// its non-success status code.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote service returned %d: %s", e.StatusCode, e.Detail)
}

type CaptionClient struct {
	baseURL       string
	clipModelName string
	mode          string
	httpClient    *http.Client
}

func NewCaptionClient(config CaptionConfig, httpClient *http.Client) *CaptionClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &CaptionClient{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		clipModelName: config.ClipModelName,
		mode:          config.Mode,
		httpClient:    httpClient,
	}
}

// Create submits imageURL for captioning. Anything but 201 Created is a
// RemoteError carrying the body's detail field.
func (c *CaptionClient) Create(ctx context.Context, imageURL string) (*CaptionJob, error) {
	body, err := json.Marshal(CaptionRequest{
		Inputs: CaptionInputs{
			ClipModelName: c.clipModelName,
			Image:         imageURL,
			Mode:          c.mode,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	defer resp.Body.Close()

	var job CaptionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		if resp.StatusCode != http.StatusCreated {
			return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: job.DetailText()}
	}

	return &job, nil
}

// Get fetches the current state of the prediction with the given id.
func (c *CaptionClient) Get(ctx context.Context, id string) (*CaptionJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prediction %s: %w", id, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Prediction *CaptionJob `json:"prediction"`
		Detail     *string     `json:"detail"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode != http.StatusOK {
		detail := http.StatusText(resp.StatusCode)
		switch {
		case envelope.Prediction != nil && envelope.Prediction.Detail != nil:
			detail = *envelope.Prediction.Detail
		case envelope.Detail != nil:
			detail = *envelope.Detail
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode prediction %s: %w", id, decodeErr)
	}
	if envelope.Prediction == nil {
		return nil, fmt.Errorf("prediction %s missing from response", id)
	}

	job := envelope.Prediction
	if job.ID == "" {
		job.ID = id
	}

	return job, nil
}
