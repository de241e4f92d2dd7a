// Package fetcher loads the original artifact and the active concepts for a
// work item, with debouncing so overlapping triggers (mount, retry, realtime
// refresh) collapse into a single read sequence.
package fetcher

import (
	"context"
	"sync"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/review"

	"golang.org/x/sync/errgroup"
)

const module = "ImageFetch"

type Config struct {
	// Debounce drops a fetch that starts this soon after the previous start.
	Debounce time.Duration
	// LoadingFallback bounds a single fetch. A read still running after it
	// fails the fetch with ErrFetchFailed and frees the fetch slot.
	LoadingFallback time.Duration

	DefaultImageURL string
	DefaultTitle    string
	DefaultPrompt   string
}

type Artifact struct {
	Id  string `json:"id"`
	URL string `json:"url"`
}

type Result struct {
	Key      string
	WorkItem *entity.WorkItem
	Original Artifact
	Concepts []*entity.Concept
	TestData bool
}

type Controller struct {
	store  review.Store
	cfg    Config
	logger logger.ILogger
	now    func() time.Time

	mu         sync.Mutex
	inProgress bool
	lastStart  time.Time
	loading    bool
}

func New(store review.Store, cfg Config, log logger.ILogger) *Controller {
	return &Controller{
		store:  store,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Fetch loads the item. It returns ErrFetchSkipped when another fetch is in
// flight or one started within the debounce window; the caller keeps whatever
// that other fetch produces.
func (c *Controller) Fetch(ctx context.Context, key string, useTestData bool) (*Result, error) {
	if !c.begin() {
		c.logger.Debug(module, "Fetch dropped", map[string]interface{}{"item_key": key})
		return nil, review.NewError(review.ErrFetchSkipped, "fetch", nil)
	}
	defer c.finish()

	if useTestData {
		return TestData(key), nil
	}
	if c.cfg.LoadingFallback <= 0 {
		return c.load(ctx, key)
	}

	lctx, cancel := context.WithTimeout(ctx, c.cfg.LoadingFallback)
	defer cancel()
	type outcome struct {
		res *Result
		err error
	}
	out := make(chan outcome, 1)
	go func() {
		res, err := c.load(lctx, key)
		out <- outcome{res, err}
	}()
	select {
	case o := <-out:
		return o.res, o.err
	case <-lctx.Done():
		// The store may ignore cancellation; its late result is dropped.
		c.logger.Warn(module, "Fetch exceeded loading fallback", map[string]interface{}{"item_key": key, "after": c.cfg.LoadingFallback.String()})
		return nil, review.NewError(review.ErrFetchFailed, "fetch", lctx.Err())
	}
}

// Refetch bypasses the debounce window but still yields to an in-flight fetch.
// Used by retry and by the end of a regeneration.
func (c *Controller) Refetch(ctx context.Context, key string, useTestData bool) (*Result, error) {
	c.mu.Lock()
	c.lastStart = time.Time{}
	c.mu.Unlock()
	return c.Fetch(ctx, key, useTestData)
}

// begin claims the fetch slot; guards are set before any I/O starts.
func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.inProgress {
		return false
	}
	if !c.lastStart.IsZero() && now.Sub(c.lastStart) < c.cfg.Debounce {
		return false
	}
	c.inProgress = true
	c.lastStart = now
	c.loading = true
	return true
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inProgress = false
	c.loading = false
}

func (c *Controller) load(ctx context.Context, key string) (*Result, error) {
	const op = "fetch"
	var (
		item     *entity.WorkItem
		concepts []*entity.Concept
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		item, err = c.store.GetWorkItem(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		concepts, err = c.store.ListActiveConcepts(gctx, key)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn(module, "Work item read failed", map[string]interface{}{"item_key": key, "error": err.Error()})
		return nil, review.NewError(review.ErrFetchFailed, op, err)
	}

	if item == nil {
		created, err := c.ensure(ctx, key)
		if err != nil {
			return nil, review.NewError(review.ErrFetchFailed, op, err)
		}
		item = created
	}

	result := &Result{
		Key:      key,
		WorkItem: item,
		Original: Artifact{Id: "original", URL: item.OriginalImageURL},
	}
	// Concepts of an item that is not ready are never exposed, whatever the table holds.
	if !item.Ready {
		return result, review.NewError(review.ErrNotReady, op, nil)
	}

	for _, concept := range concepts {
		if concept.IsActive() {
			result.Concepts = append(result.Concepts, concept)
		}
	}
	return result, nil
}

// ensure lazily creates the item, not ready for voting until the pipeline flips it.
func (c *Controller) ensure(ctx context.Context, key string) (*entity.WorkItem, error) {
	item := &entity.WorkItem{
		Key:              key,
		Title:            c.cfg.DefaultTitle,
		OriginalImageURL: c.cfg.DefaultImageURL,
		Prompt:           c.cfg.DefaultPrompt,
		Status:           entity.ProcessingPending,
		Ready:            false,
		CreatedAt:        c.now(),
	}
	if err := c.store.CreateWorkItem(ctx, item); err != nil {
		// Another session may have created it first.
		existing, getErr := c.store.GetWorkItem(ctx, key)
		if getErr != nil || existing == nil {
			return nil, err
		}
		return existing, nil
	}
	c.logger.Info(module, "Work item initialized", map[string]interface{}{"item_key": key})
	return item, nil
}
