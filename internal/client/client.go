package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the sticker generation API on behalf of a signed-in user.
type Client struct {
	http *resty.Client
	// download fetches result images, which live on the storage host and must not see the session token
	download *resty.Client
}

// Config holds configuration for Client.
type Config struct {
	BaseURL string
	// Token is the session token sent as a bearer credential.
	Token   string
	Timeout time.Duration
}

// New creates a new API client.
// Parameters:
//   - cfg: server address, session token and per-request timeout.
// Returns:
//   - *Client: client ready for use.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}
	return &Client{
		http:     httpClient,
		download: resty.New().SetTimeout(timeout),
	}
}

// JobStatus is the status poll payload.
type JobStatus struct {
	Status    string  `json:"status"`
	ResultURL *string `json:"result_url"`
	ErrorMsg  *string `json:"error_msg"`
	Prompt    string  `json:"prompt"`
}

// Terminal reports whether the job has reached complete or error.
func (s *JobStatus) Terminal() bool {
	return s.Status == "complete" || s.Status == "error"
}

// OrderResult is the response to a placed print order.
type OrderResult struct {
	Success             bool    `json:"success"`
	PrintPartnerOrderID string  `json:"printPartnerOrderId"`
	TotalCost           float64 `json:"totalCost"`
	Message             string  `json:"message"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

type submitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// Submit queues a generation job and returns its id.
func (c *Client) Submit(ctx context.Context, prompt string) (string, error) {
	var out submitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"prompt": prompt}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/api/generate")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("jobId", jobID).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/job-status")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceOrder orders quantity prints of a completed job.
func (c *Client) PlaceOrder(ctx context.Context, jobID string, quantity int) (*OrderResult, error) {
	var out OrderResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"orderId": jobID, "quantity": quantity}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/api/order")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams the image at url into w and returns the number of bytes written.
// url is usually a job's result_url and may live on a different host than the API.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.download.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to download image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return 0, &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to read image: %w", err)
	}
	return n, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := strings.TrimSpace(resp.String())
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}
