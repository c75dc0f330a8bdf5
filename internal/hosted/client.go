package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

const (
	DefaultBaseURL    = "https://api.cloud.llamaindex.ai"
	DefaultSchemaName = "Invoice Schema"

	headerRequestID = "X-Request-ID"
)

// Job states reported by the extraction API.
const (
	JobPending   = "PENDING"
	JobSuccess   = "SUCCESS"
	JobError     = "ERROR"
	JobCancelled = "CANCELLED"
)

type Config struct {
	APIKey       string
	BaseURL      string
	SchemaName   string
	Timeout      time.Duration // per HTTP call
	PollInterval time.Duration
	MaxPolls     int
}

// Client talks to the hosted extraction REST API. Calls are sequential; the
// client never retries.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *slog.Logger

	mu      sync.Mutex
	schemas map[string]map[string]any // schema id -> data schema
}

type idResponse struct {
	ID string `json:"id"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type resultResponse struct {
	Data json.RawMessage `json:"data"`
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "LLAMA_CLOUD_API_KEY is not set", common.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SchemaName == "" {
		cfg.SchemaName = DefaultSchemaName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 150
	}

	c := &Client{cfg: cfg, logger: logger, schemas: map[string]map[string]any{}}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			r.SetHeader(headerRequestID, uuid.New().String())
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			logger.Debug("hosted.http.response",
				"req_id", resp.Request.Header.Get(headerRequestID),
				"method", resp.Request.Method,
				"url", resp.Request.URL,
				"status", resp.StatusCode(),
				"bytes", len(resp.Body()),
				"elapsed_ms", resp.Time().Milliseconds(),
			)
			return nil
		})
	return c, nil
}

// PrepareSchema registers the profile's data schema and returns its id.
func (c *Client) PrepareSchema(ctx context.Context, profile invoice.Profile) (string, error) {
	schema := BuildInvoiceJSONSchema(profile)
	var out idResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": c.cfg.SchemaName, "data_schema": schema}).
		SetResult(&out).
		Post("/api/v1/extraction/schemas")
	if err := c.check("create schema", resp, err); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", common.HostedErrorf("create schema: response has no id")
	}

	c.mu.Lock()
	c.schemas[out.ID] = schema
	c.mu.Unlock()

	c.logger.Info("hosted.schema.created", "schema_id", out.ID, "profile", profile.Name)
	return out.ID, nil
}

// ExtractDocument uploads path, runs an extraction job against schemaID and
// returns the validated record.
func (c *Client) ExtractDocument(ctx context.Context, schemaID, path string) (invoice.Record, error) {
	logger := common.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	c.mu.Lock()
	schema, ok := c.schemas[schemaID]
	c.mu.Unlock()
	if !ok {
		return invoice.Record{}, common.HostedErrorf("unknown schema id %q", schemaID)
	}

	fileID, err := c.upload(ctx, path)
	if err != nil {
		return invoice.Record{}, err
	}

	var job jobResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"schema_id": schemaID, "file_id": fileID}).
		SetResult(&job).
		Post("/api/v1/extraction/jobs")
	if err := c.check("create job", resp, err); err != nil {
		return invoice.Record{}, err
	}
	logger.Info("hosted.job.created", "job_id", job.ID, "file_id", fileID)

	if err := c.waitForJob(ctx, job.ID); err != nil {
		return invoice.Record{}, err
	}

	var result resultResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/api/v1/extraction/jobs/" + job.ID + "/result")
	if err := c.check("fetch result", resp, err); err != nil {
		return invoice.Record{}, err
	}
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return invoice.Record{}, common.HostedErrorf("job %s returned no data", job.ID)
	}

	clean, changes, err := NormalizeAndSanitizeJSON(result.Data, schema, logger)
	if err != nil {
		return invoice.Record{}, common.NewAppError("HOSTED_ERROR", "sanitize job "+job.ID, err)
	}
	if err := ValidateJSONAgainstSchema(schema, clean); err != nil {
		logger.Error("hosted.schema.mismatch", "job_id", job.ID, "error", err)
		return invoice.Record{}, common.NewAppError("SCHEMA_MISMATCH", "job "+job.ID, fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	rec, err := DecodeRecord(clean)
	if err != nil {
		return invoice.Record{}, common.NewAppError("HOSTED_ERROR", "job "+job.ID, err)
	}

	logger.Info("hosted.extract.ok",
		"job_id", job.ID,
		"invoice_number", rec.Number(),
		"items", len(rec.Items),
		"sanitized", len(changes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", common.NewAppError("HOSTED_ERROR", "open "+path, err)
	}
	defer func() { _ = f.Close() }()

	var out idResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("upload_file", filepath.Base(path), f).
		SetResult(&out).
		Post("/api/v1/files")
	if err := c.check("upload "+filepath.Base(path), resp, err); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", common.HostedErrorf("upload %s: response has no id", filepath.Base(path))
	}
	return out.ID, nil
}

func (c *Client) waitForJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for i := 0; i < c.cfg.MaxPolls; i++ {
		var job jobResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&job).
			Get("/api/v1/extraction/jobs/" + jobID)
		if err := c.check("poll job", resp, err); err != nil {
			return err
		}
		switch strings.ToUpper(job.Status) {
		case JobSuccess:
			return nil
		case JobError, JobCancelled:
			msg := job.Error
			if msg == "" {
				msg = "no detail"
			}
			return common.HostedErrorf("job %s %s: %s", jobID, strings.ToLower(job.Status), msg)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return common.HostedErrorf("job %s still running after %d polls", jobID, c.cfg.MaxPolls)
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Error("hosted.http.send_error", "op", op, "error", err)
		return common.NewAppError("HOSTED_ERROR", op, fmt.Errorf("%w: %v", common.ErrHosted, err))
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 512 {
			body = body[:512] + "...(truncated)"
		}
		c.logger.Error("hosted.http.status", "op", op, "status", resp.StatusCode(), "body", body)
		return common.HostedErrorf("%s: status %d: %s", op, resp.StatusCode(), body)
	}
	return nil
}
