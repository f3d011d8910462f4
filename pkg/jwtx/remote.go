package jwtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMinRefreshInterval limits how often an unknown kid can trigger a
// JWKS refetch.
const DefaultMinRefreshInterval = time.Minute

const maxJWKSBytes = 1 << 20

var ErrJWKSFetch = errors.New("jwtx: jwks fetch failed")

// FetchJWKS downloads and decodes a JWKS document.
func FetchJWKS(ctx context.Context, client *http.Client, url string) (JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return JWKS{}, fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return JWKS{}, fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return JWKS{}, fmt.Errorf("%w: status %d", ErrJWKSFetch, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&jwks); err != nil {
		return JWKS{}, fmt.Errorf("%w: decode: %w", ErrJWKSFetch, err)
	}
	return jwks, nil
}

// RemoteKeySet is a KeySet loaded from a JWKS URL. A lookup for an unknown
// kid refetches the document, at most once per refresh interval, so key
// rotation on the issuer is picked up without a restart.
type RemoteKeySet struct {
	url        string
	client     *http.Client
	minRefresh time.Duration
	keys       *KeySet
	now        func() time.Time

	mu        sync.Mutex
	lastFetch time.Time
	group     singleflight.Group
}

// NewRemoteKeySet returns an empty RemoteKeySet; keys are fetched lazily.
func NewRemoteKeySet(url string, client *http.Client, minRefresh time.Duration) *RemoteKeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if minRefresh <= 0 {
		minRefresh = DefaultMinRefreshInterval
	}
	return &RemoteKeySet{
		url:        url,
		client:     client,
		minRefresh: minRefresh,
		keys:       NewKeySet(),
		now:        time.Now,
	}
}

// Key implements KeySource.
func (r *RemoteKeySet) Key(ctx context.Context, kid string) (any, error) {
	if pk, err := r.keys.Key(ctx, kid); err == nil {
		return pk, nil
	}

	if !r.refreshDue() {
		return nil, ErrNoKey
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r.keys.Key(ctx, kid)
}

// Refresh refetches the JWKS now. Concurrent callers share one request.
func (r *RemoteKeySet) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		r.mu.Lock()
		r.lastFetch = r.now()
		r.mu.Unlock()

		jwks, err := FetchJWKS(ctx, r.client, r.url)
		if err != nil {
			return nil, err
		}
		return nil, r.keys.ResetFromJWKS(jwks)
	})
	return err
}

// IsReady reports whether at least one key has been loaded.
func (r *RemoteKeySet) IsReady() bool {
	return r.keys.IsReady()
}

func (r *RemoteKeySet) refreshDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFetch.IsZero() || r.now().Sub(r.lastFetch) >= r.minRefresh
}
