// Package checker validates an ambiance library before it is served:
// unique track list names, resolvable successors, local files on disk and
// reachable remote links.
package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dndj/dndj/internal/library"
	"github.com/dndj/dndj/internal/log"
	"github.com/dndj/dndj/internal/stream"
	"github.com/dndj/dndj/internal/tracing"
)

// DefaultOEmbedEndpoint answers 200 for public, embeddable videos.
const DefaultOEmbedEndpoint = "https://www.youtube.com/oembed"

// LinkCache remembers links that passed validation.
type LinkCache interface {
	Contains(ctx context.Context, link string) (bool, error)
	Add(ctx context.Context, link string) error
}

// Prober checks that a remote link points at a playable video.
type Prober interface {
	Probe(ctx context.Context, link string) error
}

// OEmbedProber probes links against an oEmbed endpoint.
type OEmbedProber struct {
	Client   *http.Client
	Endpoint string
}

// NewOEmbedProber returns a prober for the YouTube endpoint.
func NewOEmbedProber(timeout time.Duration) *OEmbedProber {
	return &OEmbedProber{
		Client:   &http.Client{Timeout: timeout},
		Endpoint: DefaultOEmbedEndpoint,
	}
}

func (p *OEmbedProber) Probe(ctx context.Context, link string) error {
	u, err := url.Parse(p.Endpoint)
	if err != nil {
		return fmt.Errorf("parsing oembed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", link)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &stream.UnresolvableRemoteLinkError{Link: link, Err: err}
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &stream.UnresolvableRemoteLinkError{Link: link, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &stream.UnresolvableRemoteLinkError{Link: link, Err: fmt.Errorf("oembed returned %s", resp.Status)}
	}
	return nil
}

// Checker validates libraries. The cache may be nil.
type Checker struct {
	cache  LinkCache
	prober Prober
}

// New creates a Checker.
func New(cache LinkCache, prober Prober) *Checker {
	return &Checker{cache: cache, prober: prober}
}

// Check runs every validation and reports all problems found.
func (c *Checker) Check(ctx context.Context, lib *library.Library) error {
	ctx, span := tracing.Tracer().Start(ctx, "checker.check")
	defer span.End()

	if err := CheckNames(lib.Music); err != nil {
		tracing.Fail(span, err)
		return err
	}
	if err := c.CheckFiles(ctx, lib); err != nil {
		tracing.Fail(span, err)
		return err
	}
	log.Info(log.CatCheck, "Library is valid")
	return nil
}

// CheckNames requires track list names to be unique across groups and every
// next to name an existing track list.
func CheckNames(music *library.MusicLibrary) error {
	if music == nil {
		return nil
	}
	seen := make(map[string]string)
	for _, g := range music.Groups {
		for _, tl := range g.TrackLists {
			if other, dup := seen[tl.Name]; dup {
				return &library.ConfigError{
					Field:  "music.groups.track_lists.name",
					Reason: fmt.Sprintf("%q is used in both %q and %q", tl.Name, other, g.Name),
				}
			}
			seen[tl.Name] = g.Name
		}
	}
	for _, g := range music.Groups {
		for _, tl := range g.TrackLists {
			if tl.Next == "" {
				continue
			}
			if _, ok := seen[tl.Next]; !ok {
				return &library.ConfigError{
					Field:  "music.groups.track_lists.next",
					Reason: fmt.Sprintf("%q in %q names no track list", tl.Next, tl.Name),
				}
			}
		}
	}
	return nil
}

// CheckFiles verifies every local file exists and every remote link is
// reachable. All failures are joined into one error.
func (c *Checker) CheckFiles(ctx context.Context, lib *library.Library) error {
	var errs []error
	if lib.Music != nil {
		_ = lib.Music.Each(func(g *library.MusicGroup, tl *library.TrackList, t library.Track) error {
			if t.IsRemote() {
				if err := c.CheckLink(ctx, t.File); err != nil {
					errs = append(errs, err)
				}
				return ctx.Err()
			}
			if _, err := lib.Music.LocalTrackPath(g, tl, t); err != nil {
				errs = append(errs, fmt.Errorf("track list %q: %w", tl.Name, err))
			}
			return nil
		})
	}
	if lib.Sound != nil {
		_ = lib.Sound.Each(func(g *library.SoundGroup, s *library.Sound, f library.SoundFile) error {
			if _, err := lib.Sound.SoundFilePath(g, s, f); err != nil {
				errs = append(errs, fmt.Errorf("sound %q: %w", s.Name, err))
			}
			return nil
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// CheckLink validates one remote link, consulting and filling the cache.
func (c *Checker) CheckLink(ctx context.Context, link string) error {
	ctx, span := tracing.Tracer().Start(ctx, "checker.link")
	defer span.End()
	span.SetAttributes(attribute.String("link", link))

	if c.cache != nil {
		ok, err := c.cache.Contains(ctx, link)
		if err != nil {
			log.Warn(log.CatCheck, "Link cache lookup failed", "link", link, "error", err)
		} else if ok {
			log.Debug(log.CatCheck, "Link found in cache", "link", link)
			return nil
		}
	}
	if c.prober == nil {
		return nil
	}

	log.Info(log.CatCheck, "Checking remote link", "link", link)
	if err := c.prober.Probe(ctx, link); err != nil {
		tracing.Fail(span, err)
		return err
	}
	if c.cache != nil {
		if err := c.cache.Add(ctx, link); err != nil {
			log.Warn(log.CatCheck, "Could not cache link", "link", link, "error", err)
		}
	}
	return nil
}
