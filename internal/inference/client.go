// Package inference calls the object-detection service that annotates an
// image already placed in object storage.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/edgard/polybot/internal/apperr"
)

// DefaultTimeout bounds one inference call.
const DefaultTimeout = 60 * time.Second

const maxErrorBody = 4 * 1024

// ErrNotFound means the service could not find the image in storage yet.
var ErrNotFound = errors.New("inference: image not found")

// StatusError is returned for responses other than 200 and 404.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Result is the service response for a successful prediction.
type Result struct {
	PredictionID     string  `json:"prediction_id"`
	OriginalImgPath  string  `json:"original_img_path"`
	PredictedImgPath string  `json:"predicted_img_path"`
	Labels           Labels  `json:"labels"`
	Time             float64 `json:"time,omitempty"`
}

// Client calls POST /predict?imgName=<name>.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the service at host:port.
func NewClient(host string, port int, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithBaseURL("http://"+net.JoinHostPort(host, strconv.Itoa(port)), &http.Client{Timeout: timeout}, logger)
}

// NewClientWithBaseURL creates a client for an explicit base URL.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.With("component", "inference_client"),
	}
}

// Predict asks the service to run detection on the stored image imgName.
// A 404 is reported as ErrNotFound. Every failure is classified transient.
func (c *Client) Predict(ctx context.Context, imgName string) (*Result, error) {
	endpoint := c.baseURL + "/predict?" + url.Values{"imgName": {imgName}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeInference, "inference request failed", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "Failed to close inference response body", "error", closeErr)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperr.Transient(apperr.CodeInference, "inference service",
			fmt.Errorf("%w: %s", ErrNotFound, string(body)))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperr.Transient(apperr.CodeInference, "inference service",
			&StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Transient(apperr.CodeInference, "decode inference response", err)
	}

	c.logger.DebugContext(ctx, "Inference completed",
		"img_name", imgName,
		"prediction_id", result.PredictionID,
		"labels", len(result.Labels),
		"duration", time.Since(start))
	return &result, nil
}
