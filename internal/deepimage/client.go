package deepimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

const (
	defaultBaseURL = "https://deep-image.ai"
	submitPath     = "/rest_api/process_result"
	resultPath     = "/rest_api/result/"
	apiKeyHeader   = "x-api-key"
	maxErrorBody   = 512
)

// Options configures the deep-image.ai client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client talks to the deep-image.ai REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates a client with sane defaults for any unset option.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		logger:     logger.Named("deepimage"),
	}
}

// ProcessResult submits an image with generation parameters. The response either
// already carries the result or names a job to poll.
func (c *Client) ProcessResult(ctx context.Context, filename string, image io.Reader, params Parameters) (*Result, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal parameters: %v", domain.ErrService, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: create image part: %v", domain.ErrService, err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("%w: copy image: %v", domain.ErrService, err)
	}
	if err := writer.WriteField("parameters", string(paramsJSON)); err != nil {
		return nil, fmt.Errorf("%w: write parameters: %v", domain.ErrService, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close writer: %v", domain.ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrService, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	result, err := c.doJSON(req)
	if err != nil {
		return nil, err
	}
	c.logger.Info("submission accepted",
		zap.String("status", result.Status),
		zap.String("job_id", result.Job))
	return result, nil
}

// Result fetches the current status of a job.
func (c *Client) Result(ctx context.Context, jobID string) (*Result, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrService)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+resultPath+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrService, err)
	}
	return c.doJSON(req)
}

// Download streams the artifact at rawURL into w. The result URL is
// pre-signed, so no API key is sent with it.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return 0, fmt.Errorf("invalid result url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("download status %d", resp.StatusCode)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read result body: %w", err)
	}
	return n, nil
}

func (c *Client) doJSON(req *http.Request) (*Result, error) {
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrService, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", domain.ErrService, resp.StatusCode, truncate(raw))
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrService, err)
	}
	return &result, nil
}

func truncate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
