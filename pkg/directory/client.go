package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
)

const (
	roleTechnician              = "TECHNICIAN"
	statusActive                = "ACTIVE"
	responseBodyReadLimit int64 = 1024
	apiKeyHeader                = "X-API-Key"
)

var errBaseURLRequired = errors.New("directory base url is required when the directory is enabled")

// TechnicianRecord is the technician payload returned by the external
// employee directory.
type TechnicianRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Role   string `json:"role"`
}

// Active reports whether the directory considers the technician active.
// Status matching is case-sensitive per the directory contract.
func (r TechnicianRecord) Active() bool {
	return r.Status == statusActive
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DirectoryKey(technicianID string) string
}

// Client wraps the employee directory API used to validate technicians
// before dispatch. Lookups are cached in Redis when a cache is attached.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	enabled    bool
	failOpen   bool
	cacheTTL   time.Duration
	cache      cacheStore
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache attaches a lookup cache.
func WithCache(cache cacheStore) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger attaches a structured logger for fail-open warnings.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the directory client from configuration.
func NewClient(cfg config.DirectoryConfig, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:  strings.TrimSpace(cfg.BaseURL),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		enabled:  cfg.Enabled,
		failOpen: cfg.FailOpen,
		cacheTTL: cfg.CacheTTL,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client.httpClient = &http.Client{Timeout: timeout}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.enabled && client.baseURL == "" {
		return nil, errBaseURLRequired
	}

	return client, nil
}

// Enabled reports whether directory validation is active.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// FailOpen reports whether directory outages allow assignment to proceed.
func (c *Client) FailOpen() bool {
	return c != nil && c.failOpen
}

// Validate checks that the technician exists, holds the technician role and
// is active. When the directory is disabled the check is skipped. When the
// directory cannot be reached the fail-open flag decides whether dispatch
// proceeds or the assignment is rejected.
func (c *Client) Validate(ctx context.Context, technicianID string) error {
	if !c.Enabled() {
		return nil
	}

	trimmed := strings.TrimSpace(technicianID)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "technician ID is required")
	}

	record, err := c.lookup(ctx, trimmed)
	if err != nil {
		if pkgErr := pkgerrors.As(err); pkgErr != nil && pkgErr.Code() == pkgerrors.CodeNotFound {
			return err
		}
		if c.failOpen {
			if c.logg != nil {
				c.logg.Warn(c.logg.WithTechnicianID(ctx, trimmed), "directory unavailable, proceeding fail-open")
			}
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("technician %s could not be validated: directory unavailable", trimmed))
	}

	if record.Role != roleTechnician {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("technician %s not found in directory", trimmed))
	}
	if !record.Active() {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("technician %s is not active", trimmed))
	}
	return nil
}

// GetInfo fetches the directory record for read-only technician display.
// Unlike Validate it never propagates failures: missing records, outages and
// a disabled directory all yield nil, with the cause logged.
func (c *Client) GetInfo(ctx context.Context, technicianID string) *TechnicianRecord {
	if !c.Enabled() {
		return nil
	}

	trimmed := strings.TrimSpace(technicianID)
	if trimmed == "" {
		return nil
	}

	record, err := c.lookup(ctx, trimmed)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithTechnicianID(ctx, trimmed), "directory lookup failed")
		}
		return nil
	}
	return record
}

func (c *Client) lookup(ctx context.Context, technicianID string) (*TechnicianRecord, error) {
	if cached := c.fromCache(ctx, technicianID); cached != nil {
		return cached, nil
	}

	record, err := c.fetch(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	c.storeCache(ctx, record)
	return record, nil
}

func (c *Client) fetch(ctx context.Context, technicianID string) (*TechnicianRecord, error) {
	endpoint := fmt.Sprintf("%s/technicians/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(technicianID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build directory request")
	}
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute directory request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("technician %s not found in directory", technicianID))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "directory request failed")
	}

	var record TechnicianRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode directory response")
	}
	if record.ID == "" {
		record.ID = technicianID
	}
	return &record, nil
}

func (c *Client) fromCache(ctx context.Context, technicianID string) *TechnicianRecord {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil
	}
	raw, err := c.cache.Get(ctx, c.cache.DirectoryKey(technicianID))
	if err != nil || raw == "" {
		return nil
	}
	var record TechnicianRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil
	}
	return &record
}

func (c *Client) storeCache(ctx context.Context, record *TechnicianRecord) {
	if c.cache == nil || c.cacheTTL <= 0 || record == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cache.DirectoryKey(record.ID), string(payload), c.cacheTTL); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "directory cache write failed")
	}
}
