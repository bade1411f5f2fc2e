package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var ErrEmptyUpload = errors.New("no file uploaded")

type Uploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (*FileDescriptor, error)
}

// HTTPUploader stores files through a hosted binary upload API and returns
// their public URL.
type HTTPUploader struct {
	baseURL    string
	accountID  string
	apiKey     string
	httpClient *http.Client
}

var _ Uploader = (*HTTPUploader)(nil)

func NewHTTPUploader(config UploadConfig, httpClient *http.Client) *HTTPUploader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPUploader{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		accountID:  config.AccountID,
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, name, contentType string, body io.Reader) (*FileDescriptor, error) {
	endpoint := fmt.Sprintf("%s/v2/accounts/%s/uploads/binary", u.baseURL, url.PathEscape(u.accountID))
	if name != "" {
		endpoint += "?originalFileName=" + url.QueryEscape(name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+u.apiKey)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		detail := http.StatusText(resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&failure) == nil && failure.Error.Message != "" {
			detail = failure.Error.Message
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var file FileDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if file.FileURL == "" {
		return nil, errors.New("upload response has no fileUrl")
	}

	return &file, nil
}
