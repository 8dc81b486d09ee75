// Package stream resolves remote video links to playable audio URLs.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dndj/dndj/internal/log"
	"github.com/dndj/dndj/internal/tracing"
)

// Resolver turns a remote link into a URL a player can open.
type Resolver interface {
	Resolve(ctx context.Context, link string) (string, error)
	// Forget drops any remembered resolution of link.
	Forget(link string)
}

// UnresolvableRemoteLinkError is returned when a link cannot be resolved,
// for example because the video is private or gone.
type UnresolvableRemoteLinkError struct {
	Link string
	Err  error
}

func (e *UnresolvableRemoteLinkError) Error() string {
	return fmt.Sprintf("cannot resolve remote link %q: %v", e.Link, e.Err)
}

func (e *UnresolvableRemoteLinkError) Unwrap() error { return e.Err }

// FetchFunc performs one uncached resolution.
type FetchFunc func(ctx context.Context, link string) (string, error)

// CachedResolver memoises a FetchFunc. Stream URLs expire upstream, so
// entries live for a bounded TTL.
type CachedResolver struct {
	fetch   FetchFunc
	cache   *gocache.Cache
	timeout time.Duration
}

// NewCached wraps fetch with a TTL cache. A zero timeout disables the
// per-call deadline.
func NewCached(fetch FetchFunc, ttl, timeout time.Duration) *CachedResolver {
	return &CachedResolver{
		fetch:   fetch,
		cache:   gocache.New(ttl, 2*ttl),
		timeout: timeout,
	}
}

// NewYTDLP returns a resolver shelling out to yt-dlp for the given format.
func NewYTDLP(format string, ttl, timeout time.Duration) *CachedResolver {
	return NewCached(YTDLPFetcher(format), ttl, timeout)
}

// YTDLPFetcher asks yt-dlp for the direct URL of the best matching stream.
func YTDLPFetcher(format string) FetchFunc {
	if format == "" {
		format = "bestaudio"
	}
	return func(ctx context.Context, link string) (string, error) {
		res, err := ytdlp.New().
			Format(format).
			NoPlaylist().
			GetURL().
			Run(ctx, link)
		if err != nil {
			return "", err
		}
		return firstLine(res.Stdout)
	}
}

func firstLine(out string) (string, error) {
	for line := range strings.SplitSeq(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", errors.New("no stream url in output")
}

// Resolve returns the cached URL for link or fetches a new one.
func (r *CachedResolver) Resolve(ctx context.Context, link string) (string, error) {
	ctx, span := tracing.Tracer().Start(ctx, "stream.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("stream.link", link))

	if url, ok := r.cache.Get(link); ok {
		span.SetAttributes(attribute.Bool("stream.cached", true))
		return url.(string), nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log.Debug(log.CatStream, "Resolving remote link", "link", link)
	url, err := r.fetch(ctx, link)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		err = &UnresolvableRemoteLinkError{Link: link, Err: err}
		tracing.Fail(span, err)
		log.ErrorErr(log.CatStream, "Failed to resolve remote link", err, "link", link)
		return "", err
	}

	r.cache.SetDefault(link, url)
	return url, nil
}

// Forget drops any cached URL for link.
func (r *CachedResolver) Forget(link string) {
	r.cache.Delete(link)
}
