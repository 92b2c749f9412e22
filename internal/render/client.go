package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Sentinel errors for render service failures.
var (
	ErrRenderUnreachable = errors.New("render service unreachable")
	ErrRenderRejected    = errors.New("render service rejected request")
	ErrRenderTimeout     = errors.New("render service timeout")
	ErrJobNotFound       = errors.New("render job not found")
	ErrJobNotReady       = errors.New("render job not completed")
)

// Client is the interface for talking to the remote render service.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	DeleteJob(ctx context.Context, id string) error
	Download(ctx context.Context, id string) (*Artifact, error)
	ExtractRepositories(ctx context.Context, req ExtractRequest) (*RepositoryReport, error)
	Ping(ctx context.Context) error
}

// SubmitRequest carries the document to render and the requested tier.
type SubmitRequest struct {
	Filename string
	Content  []byte
	Quality  models.Quality
}

// SubmitResponse is the render service's answer to a submission.
type SubmitResponse struct {
	JobID    string           `json:"job_id"`
	Status   models.JobStatus `json:"status"`
	FilePath string           `json:"file_path"`
}

// Artifact is a streamed download. Callers must close Body.
type Artifact struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// ExtractRequest asks the render service to find repository links in a document.
type ExtractRequest struct {
	Filename        string
	Content         []byte
	FetchReadmes    bool
	SimplifyReadmes bool
}

// RepositoryReport is the result of repository link extraction.
type RepositoryReport struct {
	Links      []string                    `json:"github_links"`
	Readmes    map[string]string           `json:"readmes"`
	Simplified map[string]SimplifiedReadme `json:"simplified_readmes"`
}

// SimplifiedReadme pairs a README with its plain-language rewrite.
type SimplifiedReadme struct {
	Original   string `json:"original"`
	Simplified string `json:"simplified"`
}

// HTTPClient implements Client using the render service's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new render service client. timeout bounds every
// request except downloads, which are bounded only by ctx.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	body, contentType, err := multipartBody(req.Filename, req.Content, map[string]string{
		"quality": req.Quality.Wire(),
	})
	if err != nil {
		return SubmitResponse{}, err
	}

	params := url.Values{"quality": {req.Quality.Wire()}}
	u := fmt.Sprintf("%s/generate-video-upload?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return SubmitResponse{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SubmitResponse{}, fmt.Errorf("%w: status %d: %s", ErrRenderRejected, resp.StatusCode, readDetail(resp.Body))
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SubmitResponse{}, fmt.Errorf("%w: decoding submit response: %v", ErrRenderRejected, err)
	}
	if out.JobID == "" {
		return SubmitResponse{}, fmt.Errorf("%w: submit response missing job_id", ErrRenderRejected)
	}
	return out, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, id string) (models.Job, error) {
	u := fmt.Sprintf("%s/jobs/%s", c.baseURL, url.PathEscape(id))

	resp, err := c.get(ctx, u)
	if err != nil {
		return models.Job{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Job{}, fmt.Errorf("%w: status %d", ErrRenderRejected, resp.StatusCode)
	}

	var wj wireJob
	if err := json.NewDecoder(resp.Body).Decode(&wj); err != nil {
		return models.Job{}, fmt.Errorf("decoding job response: %w", err)
	}
	return wj.toModel(), nil
}

func (c *HTTPClient) ListJobs(ctx context.Context) ([]models.Job, error) {
	resp, err := c.get(ctx, c.baseURL+"/jobs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRenderRejected, resp.StatusCode)
	}

	var listResp struct {
		Jobs []wireJob `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decoding jobs response: %w", err)
	}

	jobs := make([]models.Job, 0, len(listResp.Jobs))
	for _, wj := range listResp.Jobs {
		jobs = append(jobs, wj.toModel())
	}
	return jobs, nil
}

func (c *HTTPClient) DeleteJob(ctx context.Context, id string) error {
	u := fmt.Sprintf("%s/jobs/%s", c.baseURL, url.PathEscape(id))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrRenderRejected, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) Download(ctx context.Context, id string) (*Artifact, error) {
	u := fmt.Sprintf("%s/download/%s", c.baseURL, url.PathEscape(id))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	// The shared client timeout would cut long transfers short.
	streaming := &http.Client{Transport: c.client.Transport}
	resp, err := streaming.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	case resp.StatusCode == http.StatusBadRequest:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrJobNotReady, id)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrRenderRejected, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return &Artifact{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Filename:      fmt.Sprintf("video_%s.mp4", id),
	}, nil
}

func (c *HTTPClient) ExtractRepositories(ctx context.Context, req ExtractRequest) (*RepositoryReport, error) {
	body, contentType, err := multipartBody(req.Filename, req.Content, nil)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"fetch_readmes":    {strconv.FormatBool(req.FetchReadmes)},
		"simplify_readmes": {strconv.FormatBool(req.SimplifyReadmes)},
	}
	u := fmt.Sprintf("%s/extract-github-upload?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRenderRejected, resp.StatusCode, readDetail(resp.Body))
	}

	var report RepositoryReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding extract response: %w", err)
	}
	if report.Links == nil {
		report.Links = []string{}
	}
	return &report, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: render service not healthy (status %d)", ErrRenderUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, u string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

func multipartBody(filename string, content []byte, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("writing form file: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// readDetail extracts the "detail" message of an error body, or a prefix of
// the raw body when it is not JSON.
func readDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != nil {
		return fmt.Sprint(body.Detail)
	}
	return string(bytes.TrimSpace(raw))
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrRenderTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrRenderTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrRenderUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
