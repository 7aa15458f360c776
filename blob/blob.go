// Package blob provides raw-bytes assets for the assetq loader: local
// files and HTTP fetches. Use them for asset kinds that need no
// decoding, or as the input stage of a custom pipeline.
package blob

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gogpu/assetq"
)

// Receiver accepts the loaded bytes during the finalize phase.
// It runs on the owning goroutine. A returned error marks the asset
// invalid.
type Receiver func(data []byte) error

// Option configures a blob asset during creation. WithClient and
// WithRetryBudget concern fetching and are ignored by NewFile.
type Option func(*config)

type config struct {
	receive    Receiver
	client     *http.Client
	maxElapsed time.Duration
}

// WithReceiver sets the finalize-phase callback that consumes the
// loaded bytes. Without one the bytes are retained and available
// through Bytes after a successful finalize.
func WithReceiver(fn Receiver) Option {
	return func(c *config) { c.receive = fn }
}

// WithClient sets the HTTP client. Defaults to a client with a
// 30-second per-request timeout.
func WithClient(hc *http.Client) Option {
	return func(c *config) { c.client = hc }
}

// WithRetryBudget bounds the total time spent retrying a failed fetch.
// The default is 30 seconds; zero disables retries entirely, so the
// fetch is attempted exactly once.
func WithRetryBudget(d time.Duration) Option {
	return func(c *config) { c.maxElapsed = d }
}

// File loads the raw contents of a local file.
type File struct {
	assetq.State

	path    string
	receive Receiver

	// data is the payload: written by Load, consumed by Finalize.
	data []byte

	retained []byte
}

// NewFile creates a raw-file asset.
func NewFile(path string, opts ...Option) *File {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return &File{State: assetq.NewState(path), path: path, receive: c.receive}
}

// Load reads the file. Worker goroutine only.
func (f *File) Load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		assetq.Logger().Warn("blob read failed", "asset", f.Name(), "error", err)
		return
	}
	f.data = data
}

// Finalize consumes the bytes. Owning goroutine only.
func (f *File) Finalize() bool {
	data := f.data
	f.data = nil

	if data == nil {
		return f.FinishFinalize(f, false)
	}
	ok := true
	if f.receive != nil {
		if err := f.receive(data); err != nil {
			assetq.Logger().Warn("blob receiver failed", "asset", f.Name(), "error", err)
			ok = false
		}
	} else {
		f.retained = data
	}
	return f.FinishFinalize(f, ok)
}

// Bytes returns the retained contents, or nil when a receiver consumed
// them or the load failed.
func (f *File) Bytes() []byte { return f.retained }

var _ assetq.Asset = (*File)(nil)

// HTTP fetches an asset over HTTP with exponential-backoff retries.
// Transient failures (network errors, 5xx responses) are retried until
// the elapsed budget runs out; 4xx responses fail immediately.
type HTTP struct {
	assetq.State

	url     string
	receive Receiver

	client     *http.Client
	maxElapsed time.Duration

	// data is the payload: written by Load, consumed by Finalize.
	data []byte

	retained []byte
}

// NewHTTP creates an asset fetched from url.
func NewHTTP(url string, opts ...Option) *HTTP {
	c := config{maxElapsed: 30 * time.Second}
	for _, opt := range opts {
		opt(&c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{
		State:      assetq.NewState(url),
		url:        url,
		receive:    c.receive,
		client:     c.client,
		maxElapsed: c.maxElapsed,
	}
}

// Load fetches the URL, retrying transient failures. Worker goroutine
// only.
func (h *HTTP) Load() {
	var data []byte
	fetch := func() error {
		resp, err := h.client.Get(h.url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("blob: server error: %s", resp.Status)
		case resp.StatusCode >= 400:
			// Not transient: retrying a 404 will not make the asset appear.
			return backoff.Permanent(fmt.Errorf("blob: %s", resp.Status))
		}

		data, err = io.ReadAll(resp.Body)
		return err
	}

	// A zero budget means a single attempt. It cannot be expressed
	// through MaxElapsedTime, which backoff reads as no limit at all.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if h.maxElapsed > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 100 * time.Millisecond
		bo.MaxElapsedTime = h.maxElapsed
		policy = bo
	}

	if err := backoff.Retry(fetch, policy); err != nil {
		assetq.Logger().Warn("blob fetch failed", "asset", h.Name(), "error", err)
		return
	}
	h.data = data
}

// Finalize consumes the fetched bytes. Owning goroutine only.
func (h *HTTP) Finalize() bool {
	data := h.data
	h.data = nil

	if data == nil {
		return h.FinishFinalize(h, false)
	}
	ok := true
	if h.receive != nil {
		if err := h.receive(data); err != nil {
			assetq.Logger().Warn("blob receiver failed", "asset", h.Name(), "error", err)
			ok = false
		}
	} else {
		h.retained = data
	}
	return h.FinishFinalize(h, ok)
}

// Bytes returns the retained contents, or nil when a receiver consumed
// them or the fetch failed.
func (h *HTTP) Bytes() []byte { return h.retained }

var _ assetq.Asset = (*HTTP)(nil)
