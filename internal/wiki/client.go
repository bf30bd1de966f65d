// Package wiki turns a classification label into a Wikipedia summary record.
package wiki

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/flower-lookup/internal/metrics"
)

const (
	DefaultEndpoint      = "https://en.wikipedia.org/w/api.php"
	DefaultThumbnailSize = 500
	DefaultUserAgent     = "flower-lookup/1.0 (+https://github.com/example/flower-lookup)"
	DefaultMaxBodyBytes  = 2 << 20
)

// Config tunes the lookup client. Zero values fall back to the defaults above.
type Config struct {
	Endpoint      string
	ThumbnailSize int
	UserAgent     string
	MaxBodyBytes  int64
	// RequireBatchComplete rejects answers whose batchcomplete flag is absent.
	RequireBatchComplete bool
	HTTPClient           *http.Client
}

// Delegate receives the outcome of an asynchronous Lookup.
type Delegate interface {
	OnSuccess(Record)
	OnFailure(error)
}

// Callbacks adapts a pair of functions to Delegate. Nil functions are skipped.
type Callbacks struct {
	Success func(Record)
	Failure func(error)
}

func (c Callbacks) OnSuccess(r Record) {
	if c.Success != nil {
		c.Success(r)
	}
}

func (c Callbacks) OnFailure(err error) {
	if c.Failure != nil {
		c.Failure(err)
	}
}

// Client queries the MediaWiki action API. It holds no per-lookup state and is safe
// for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a lookup client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = DefaultThumbnailSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger.Named("wiki")}
}

// BuildURL interpolates label into the extract+pageimages query template.
func (c *Client) BuildURL(label string) (string, error) {
	if err := validateLabel(label); err != nil {
		return "", err
	}
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return "", fmt.Errorf("%w: invalid endpoint %q", ErrEncoding, c.cfg.Endpoint)
	}

	query := endpoint.Query()
	query.Set("format", "json")
	query.Set("action", "query")
	query.Set("prop", "extracts|pageimages")
	query.Set("exintro", "")
	query.Set("explaintext", "")
	query.Set("titles", label)
	query.Set("indexpageids", "")
	query.Set("redirects", "1")
	query.Set("pithumbsize", strconv.Itoa(c.cfg.ThumbnailSize))
	endpoint.RawQuery = query.Encode()
	endpoint.Fragment = ""
	return endpoint.String(), nil
}

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: empty label", ErrEncoding)
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("%w: label is not valid utf-8", ErrEncoding)
	}
	if strings.IndexFunc(label, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: label contains control characters", ErrEncoding)
	}
	return nil
}

// Lookup resolves label on its own goroutine and reports the outcome to d. Exactly one
// of d.OnSuccess and d.OnFailure is called, once, from a goroutine other than the
// caller's. Concurrent lookups are neither deduplicated nor ordered. A nil d
// discards the outcome.
func (c *Client) Lookup(ctx context.Context, label string, d Delegate) {
	if d == nil {
		d = Callbacks{}
	}
	go func() {
		record, err := c.Fetch(ctx, label)
		if err != nil {
			d.OnFailure(err)
			return
		}
		d.OnSuccess(record)
	}()
}

// Fetch resolves label synchronously.
func (c *Client) Fetch(ctx context.Context, label string) (Record, error) {
	start := time.Now()
	record, err := c.fetch(ctx, label)
	kind := Kind(err)
	metrics.ObserveLookup(kind, time.Since(start))

	if err != nil {
		c.logger.Warn("wikipedia lookup failed", zap.String("label", label), zap.String("kind", kind), zap.Error(err))
		return Record{}, err
	}
	c.logger.Debug("wikipedia lookup succeeded", zap.String("label", label), zap.String("title", record.Title))
	return record, nil
}

func (c *Client) fetch(ctx context.Context, label string) (Record, error) {
	target, err := c.BuildURL(label)
	if err != nil {
		return Record{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return Record{}, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{}, fmt.Errorf("%w: %w", ErrTransport, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)})
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return Record{}, fmt.Errorf("%w: body exceeds %d bytes", ErrDecoding, c.cfg.MaxBodyBytes)
	}

	decoded, err := Decode(body)
	if err != nil {
		return Record{}, err
	}
	if c.cfg.RequireBatchComplete && !decoded.BatchComplete {
		return Record{}, fmt.Errorf("%w: batch not complete", ErrMalformedResponse)
	}
	return decoded.Record()
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
