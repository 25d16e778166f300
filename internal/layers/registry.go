package layers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/gee-wms/internal/cache/keys"
	"github.com/mohammed-shakir/gee-wms/internal/core/observability"
)

var (
	ErrNoTarget = errors.New("target path is not specified")
	// ErrForeignTarget is returned for target paths that would leave the
	// backend server. It wraps ErrNoTarget.
	ErrForeignTarget = fmt.Errorf("%w: target must be a path on the backend server", ErrNoTarget)
)

const maxServerDefsBytes = 4 << 20

// SharedStore is an optional second-level cache of normalized server-defs
// documents shared between replicas.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelMatching(ctx context.Context, pattern string) (int, error)
}

type Options struct {
	TTL  time.Duration
	Size int
	// FetchTimeout bounds one server-defs fetch, detached from the caller's
	// context so a cancelled request does not fail the others sharing it.
	FetchTimeout    time.Duration
	Shared          SharedStore
	SharedOpTimeout time.Duration
}

// Registry caches one Snapshot per target URL. Snapshots are replaced
// whole; concurrent rebuilds of the same target are collapsed.
type Registry struct {
	logger *slog.Logger
	client *http.Client
	opts   Options

	cache *expirable.LRU[string, *Snapshot]
	group singleflight.Group
	// gen is bumped by every invalidation so a fetch that started before it
	// does not repopulate the cache with stale data.
	gen atomic.Uint64
}

func NewRegistry(logger *slog.Logger, client *http.Client, opts Options) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.Size <= 0 {
		opts.Size = 128
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.SharedOpTimeout <= 0 {
		opts.SharedOpTimeout = 250 * time.Millisecond
	}
	return &Registry{
		logger: logger,
		client: client,
		opts:   opts,
		cache:  expirable.NewLRU[string, *Snapshot](opts.Size, nil, opts.TTL),
	}
}

// ResolveTarget joins targetPath onto serverURL the way a browser resolves a
// relative link, dropping any query and trailing slash. targetPath must be a
// plain path: absolute and protocol-relative references are refused.
func ResolveTarget(serverURL, targetPath string) (string, error) {
	if strings.TrimSpace(targetPath) == "" {
		return "", ErrNoTarget
	}
	base, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	ref, err := url.Parse(targetPath)
	if err != nil {
		return "", fmt.Errorf("parse target path: %w", err)
	}
	if ref.Scheme != "" || ref.Host != "" || ref.User != nil || ref.Opaque != "" {
		return "", ErrForeignTarget
	}
	u := base.ResolveReference(ref)
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return "", ErrForeignTarget
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// Layers returns the current snapshot for targetPath on serverURL, fetching
// it from the backend when it is not cached.
func (r *Registry) Layers(ctx context.Context, serverURL, targetPath string) (*Snapshot, error) {
	targetURL, err := ResolveTarget(serverURL, targetPath)
	if err != nil {
		return nil, err
	}
	if snap, ok := r.cache.Get(targetURL); ok {
		observability.IncRegistry("hit")
		return snap, nil
	}
	return r.load(ctx, targetURL, true)
}

// Refresh rebuilds the snapshot from the backend, bypassing both cache levels.
func (r *Registry) Refresh(ctx context.Context, serverURL, targetPath string) (*Snapshot, error) {
	targetURL, err := ResolveTarget(serverURL, targetPath)
	if err != nil {
		return nil, err
	}
	r.Invalidate(ctx, serverURL, targetPath)
	return r.load(ctx, targetURL, false)
}

func (r *Registry) load(ctx context.Context, targetURL string, useShared bool) (*Snapshot, error) {
	v, err, shared := r.group.Do(targetURL, func() (any, error) {
		if snap, ok := r.cache.Get(targetURL); ok {
			return snap, nil
		}
		gen := r.gen.Load()
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FetchTimeout)
		defer cancel()

		snap, err := r.build(fetchCtx, targetURL, useShared)
		if err != nil {
			return nil, err
		}
		if r.gen.Load() == gen {
			r.cache.Add(targetURL, snap)
		}
		return snap, nil
	})
	if err != nil {
		observability.IncRegistry("error")
		return nil, err
	}
	if shared {
		r.logger.DebugContext(ctx, "registry load shared", "target", targetURL)
	}
	snap, ok := v.(*Snapshot)
	if !ok {
		return nil, fmt.Errorf("registry: unexpected value %T", v)
	}
	return snap, nil
}

func (r *Registry) build(ctx context.Context, targetURL string, useShared bool) (*Snapshot, error) {
	key := sharedKey(targetURL)

	if useShared && r.opts.Shared != nil {
		sctx, cancel := context.WithTimeout(ctx, r.opts.SharedOpTimeout)
		raw, ok, err := r.opts.Shared.Get(sctx, key)
		cancel()
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "shared registry read failed", "target", targetURL, "err", err)
		case ok:
			snap, perr := ParseServerDefs(targetURL, raw)
			if perr == nil {
				observability.IncRegistry("shared_hit")
				return snap, nil
			}
			r.logger.WarnContext(ctx, "shared registry entry unreadable", "target", targetURL, "err", perr)
		}
	}

	observability.IncRegistry("miss")
	normalized, err := r.fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	snap, err := ParseServerDefs(targetURL, normalized)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", targetURL, err)
	}
	r.logger.InfoContext(ctx, "layer registry built",
		"target", targetURL, "db_type", string(snap.DBType),
		"projection", snap.Projection.Name(), "layers", snap.Len())

	if r.opts.Shared != nil {
		sctx, cancel := context.WithTimeout(ctx, r.opts.SharedOpTimeout)
		if err := r.opts.Shared.Set(sctx, key, normalized, r.opts.TTL); err != nil {
			r.logger.WarnContext(ctx, "shared registry write failed", "target", targetURL, "err", err)
		}
		cancel()
	}
	return snap, nil
}

func (r *Registry) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	u := targetURL + "/" + ServerDefsQuery
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build server defs request: %w", err)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	observability.ObserveUpstreamLatency("server_defs", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch server defs %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch server defs %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxServerDefsBytes))
	if err != nil {
		return nil, fmt.Errorf("read server defs %s: %w", u, err)
	}
	return NormalizeServerDefs(body), nil
}

// Invalidate drops the cached snapshot of one target on one server.
func (r *Registry) Invalidate(ctx context.Context, serverURL, targetPath string) {
	targetURL, err := ResolveTarget(serverURL, targetPath)
	if err != nil {
		return
	}
	r.gen.Add(1)
	r.cache.Remove(targetURL)
	r.group.Forget(targetURL)
	if r.opts.Shared != nil {
		sctx, cancel := context.WithTimeout(ctx, r.opts.SharedOpTimeout)
		defer cancel()
		if err := r.opts.Shared.Del(sctx, sharedKey(targetURL)); err != nil {
			r.logger.WarnContext(ctx, "shared registry delete failed", "target", targetURL, "err", err)
		}
	}
}

// InvalidateTarget drops every cached snapshot whose target path matches,
// whatever server it was fetched from. It returns how many local entries
// were removed.
func (r *Registry) InvalidateTarget(ctx context.Context, targetPath string) int {
	want := strings.Trim(targetPath, "/")
	r.gen.Add(1)
	n := 0
	for _, k := range r.cache.Keys() {
		if targetNamespace(k) == want {
			r.cache.Remove(k)
			r.group.Forget(k)
			n++
		}
	}
	if r.opts.Shared != nil {
		sctx, cancel := context.WithTimeout(ctx, r.opts.SharedOpTimeout)
		defer cancel()
		if _, err := r.opts.Shared.DelMatching(sctx, keys.TargetPattern(want)); err != nil {
			r.logger.WarnContext(ctx, "shared registry delete failed", "target", targetPath, "err", err)
		}
	}
	return n
}

// Purge empties the local cache.
func (r *Registry) Purge() {
	r.gen.Add(1)
	r.cache.Purge()
}

func sharedKey(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return keys.ServerDefs("", targetURL)
	}
	return keys.ServerDefs(u.Scheme+"://"+u.Host, u.Path)
}
