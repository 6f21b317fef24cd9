package forge

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTitleTTL is how long a fetched title is served without refetching.
const DefaultTitleTTL = 5 * time.Minute

// Entry is one cached issue title.
type Entry struct {
	Number    uint
	Title     string
	FetchedAt time.Time
}

type titleKey struct {
	repo   string
	number uint
}

type trackerEntry struct {
	tracker    Tracker
	detectedAt time.Time
}

// TitleCache memoizes issue titles per repository. It is safe for
// concurrent use; fetches run without holding the lock.
type TitleCache struct {
	TTL     time.Duration
	Timeout time.Duration

	mu       sync.Mutex
	entries  map[titleKey]Entry
	trackers map[string]trackerEntry
	missing  map[string]time.Time // tracker kind -> when its CLI was not found

	now    func() time.Time
	detect func(ctx context.Context, repoRoot string) Tracker
	log    *log.Logger
}

// NewTitleCache returns an empty cache. Zero durations use the defaults.
func NewTitleCache(ttl, timeout time.Duration, logger *log.Logger) *TitleCache {
	if ttl <= 0 {
		ttl = DefaultTitleTTL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &TitleCache{
		TTL:      ttl,
		Timeout:  timeout,
		entries:  map[titleKey]Entry{},
		trackers: map[string]trackerEntry{},
		missing:  map[string]time.Time{},
		now:      time.Now,
		detect:   Detect,
		log:      logger.WithPrefix("forge"),
	}
}

// Tracker returns the tracker detected for repoRoot, or nil. A detected
// tracker is kept for the life of the cache; a failed detection is retried
// after one TTL, or on the next call if ctx ended during detection.
func (c *TitleCache) Tracker(ctx context.Context, repoRoot string) Tracker {
	c.mu.Lock()
	te, ok := c.trackers[repoRoot]
	if ok && (te.tracker != nil || c.now().Sub(te.detectedAt) < c.TTL) {
		c.mu.Unlock()
		return te.tracker
	}
	c.mu.Unlock()

	t := c.detect(ctx, repoRoot)
	if t == nil && ctx.Err() != nil {
		return nil
	}

	c.mu.Lock()
	c.trackers[repoRoot] = trackerEntry{tracker: t, detectedAt: c.now()}
	c.mu.Unlock()
	return t
}

// Title returns the issue title, fetching it when absent or older than the
// TTL. On fetch failure the last known title is returned, even if expired.
// It never returns an error: titles are best-effort.
func (c *TitleCache) Title(ctx context.Context, repoRoot string, number uint) (string, bool) {
	key := titleKey{repo: repoRoot, number: number}

	c.mu.Lock()
	cached, have := c.entries[key]
	fresh := have && c.now().Sub(cached.FetchedAt) < c.TTL
	c.mu.Unlock()
	if fresh {
		return cached.Title, true
	}

	tracker := c.Tracker(ctx, repoRoot)
	if tracker == nil || c.cliMissing(tracker.Kind()) {
		return staleTitle(cached, have)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	title, err := tracker.IssueTitle(fetchCtx, repoRoot, number)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			c.markMissing(tracker.Kind())
		}
		c.log.Debug("issue title fetch failed", "repo", repoRoot, "issue", number, "err", err)
		return staleTitle(cached, have)
	}
	if title == "" {
		return staleTitle(cached, have)
	}

	c.mu.Lock()
	c.entries[key] = Entry{Number: number, Title: title, FetchedAt: c.now()}
	c.mu.Unlock()
	return title, true
}

// Entries returns a copy of the cached entries for repoRoot.
func (c *TitleCache) Entries(repoRoot string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for k, e := range c.entries {
		if k.repo == repoRoot {
			out = append(out, e)
		}
	}
	return out
}

func staleTitle(e Entry, have bool) (string, bool) {
	if have && e.Title != "" {
		return e.Title, true
	}
	return "", false
}

// A missing CLI is rechecked after one TTL so installing gh mid-session works.
func (c *TitleCache) cliMissing(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.missing[kind]
	return ok && c.now().Sub(at) < c.TTL
}

func (c *TitleCache) markMissing(kind string) {
	c.mu.Lock()
	c.missing[kind] = c.now()
	c.mu.Unlock()
	c.log.Warn("tracker CLI not installed, titles disabled", "tracker", kind)
}
