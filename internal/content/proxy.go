package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spec-kit/course-platform/internal/cloudlink"
	"github.com/spec-kit/course-platform/internal/domain"
)

// Upstream failures. Neither is retried.
var (
	ErrUpstreamNotFound = errors.New("upstream asset not found")
	ErrUpstreamFetch    = errors.New("upstream fetch failed")
)

const (
	defaultUserAgent        = "Mozilla/5.0"
	defaultMaxDocumentBytes = 50 << 20
)

// Config tunes upstream fetches.
type Config struct {
	UserAgent             string
	ResponseHeaderTimeout time.Duration
	DocumentTimeout       time.Duration
	VideoTimeout          time.Duration
	MaxDocumentBytes      int64
	HTTPClient            *http.Client
}

// Proxy fetches cloud-hosted course assets on behalf of authorized callers.
type Proxy struct {
	client           *http.Client
	userAgent        string
	documentTimeout  time.Duration
	videoTimeout     time.Duration
	maxDocumentBytes int64
}

// NewProxy builds a proxy. A nil cfg.HTTPClient gets a client whose transport
// bounds the wait for response headers; total duration is bounded per call.
func NewProxy(cfg Config) *Proxy {
	client := cfg.HTTPClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
		client = &http.Client{Transport: transport}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := cfg.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDocumentBytes
	}
	return &Proxy{
		client:           client,
		userAgent:        userAgent,
		documentTimeout:  cfg.DocumentTimeout,
		videoTimeout:     cfg.VideoTimeout,
		maxDocumentBytes: maxBytes,
	}
}

// Stream is an open upstream body. Callers must Close it.
type Stream struct {
	Asset         domain.CloudAsset
	Body          io.ReadCloser
	ContentLength int64
}

// Document is a fully downloaded upstream body.
type Document struct {
	Asset domain.CloudAsset
	Body  []byte
}

// OpenVideo opens a streaming fetch of the asset behind rawURL.
//
// The body is consumed after the HTTP handler has returned, so the fetch is
// detached from ctx cancellation and bounded only by the video timeout. The
// returned Body releases the connection and the timeout when closed.
func (p *Proxy) OpenVideo(ctx context.Context, rawURL string) (*Stream, error) {
	asset := cloudlink.NewAsset(rawURL)

	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if p.videoTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), p.videoTimeout)
	} else {
		fetchCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	resp, err := p.get(fetchCtx, asset.ResolvedURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFetch, resp.StatusCode)
	}

	return &Stream{
		Asset:         asset,
		Body:          &releasingBody{ReadCloser: resp.Body, release: cancel},
		ContentLength: resp.ContentLength,
	}, nil
}

// FetchDocument downloads the whole asset behind rawURL.
// Non-2xx responses and empty bodies report ErrUpstreamNotFound.
func (p *Proxy) FetchDocument(ctx context.Context, rawURL string) (*Document, error) {
	asset := cloudlink.NewAsset(rawURL)

	if p.documentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.documentTimeout)
		defer cancel()
	}

	resp, err := p.get(ctx, asset.ResolvedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamNotFound, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamFetch, err)
	}
	if int64(len(body)) > p.maxDocumentBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrUpstreamFetch, p.maxDocumentBytes)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUpstreamNotFound)
	}
	return &Document{Asset: asset, Body: body}, nil
}

func (p *Proxy) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	return p.client.Do(req)
}

// releasingBody closes the upstream body and releases its context exactly once.
type releasingBody struct {
	io.ReadCloser
	release context.CancelFunc
	once    sync.Once
	err     error
}

func (b *releasingBody) Close() error {
	b.once.Do(func() {
		b.err = b.ReadCloser.Close()
		b.release()
	})
	return b.err
}
