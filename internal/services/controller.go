// Package services holds the sync controller that keeps the local cache in
// step with the remote store for whichever owner is signed in.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sakinah/internal/auth"
	"sakinah/internal/cache"
	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/notify"
	"sakinah/internal/remote"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrNotFound         = errors.New("not found")
	ErrLoading          = errors.New("owner data is still loading")
	ErrAlreadyStarted   = errors.New("controller is already started")
)

type State int

const (
	Unauthenticated State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unauthenticated"
	}
}

// Config holds controller timings.
type Config struct {
	// LoadTimeout bounds the first identity check (default: 5s)
	LoadTimeout time.Duration

	// WriteTimeout bounds each background remote write (default: 10s)
	WriteTimeout time.Duration

	// Now is the clock used for default dates and created_at stamps.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		LoadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		Now:          time.Now,
	}
}

// Controller mirrors one owner's rows into a cache.Store. Local writes land
// in the cache first and reach the gateway in the background; inbound change
// events go through the same upsert/remove paths.
type Controller struct {
	store    *cache.Store
	gateway  remote.Gateway
	identity auth.Provider
	bus      *notify.Bus
	logger   *log.Logger
	config   Config

	mu           sync.Mutex
	started      bool
	state        State
	owner        string
	generation   uint64
	subs         []remote.Subscription
	loginErr     error
	stopIdentity func()

	writes    sync.WaitGroup
	lastWrite chan struct{}
}

func NewController(
	store *cache.Store,
	gateway remote.Gateway,
	identity auth.Provider,
	bus *notify.Bus,
	logger *log.Logger,
	config Config,
) *Controller {
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = DefaultConfig().LoadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Controller{
		store:    store,
		gateway:  gateway,
		identity: identity,
		bus:      bus,
		logger:   logger.WithComponent(log.ComponentSync),
		config:   config,
	}
}

// Start follows the identity provider and loads the current owner, if any.
// A stalled identity check gives up after LoadTimeout and leaves the
// controller unauthenticated.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	stop := c.identity.OnOwnershipChange(c.ownerChanged)
	c.mu.Lock()
	c.stopIdentity = stop
	c.mu.Unlock()

	type result struct {
		owner string
		err   error
	}
	checkCtx, cancel := context.WithTimeout(ctx, c.config.LoadTimeout)
	defer cancel()

	resCh := make(chan result, 1)
	go func() {
		owner, err := c.identity.CurrentOwner(checkCtx)
		resCh <- result{owner: owner, err: err}
	}()

	var res result
	select {
	case res = <-resCh:
	case <-checkCtx.Done():
		c.logger.WarnContext(ctx, "Identity check timed out, continuing signed out",
			"timeout", c.config.LoadTimeout)
		return nil
	}

	if res.err != nil {
		c.mu.Lock()
		c.loginErr = res.err
		c.mu.Unlock()
		c.logger.LogError(ctx, "Identity check failed", res.err, log.OpStartup, nil)
		return nil
	}
	if res.owner == "" {
		c.logger.InfoContext(ctx, "No signed-in owner")
		return nil
	}
	return c.Initialize(ctx, res.owner)
}

func (c *Controller) ownerChanged(owner string) {
	ctx := context.Background()
	if owner == "" {
		c.Deinitialize()
		return
	}
	c.mu.Lock()
	same := owner == c.owner && c.state != Unauthenticated
	c.mu.Unlock()
	if same {
		return
	}
	if err := c.Initialize(ctx, owner); err != nil {
		c.logger.LogError(ctx, "Reload after sign-in failed", err, log.OpLoad, log.NewFields().WithOwner(owner))
	}
}

// Initialize loads owner's rows and subscribes to both tables. A failed
// read degrades to an empty list. If another Initialize or Deinitialize
// starts meanwhile, this load is dropped.
func (c *Controller) Initialize(ctx context.Context, owner string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	stale := c.subs
	c.subs = nil
	c.state = Loading
	c.owner = owner
	c.loginErr = nil
	c.mu.Unlock()

	c.unsubscribe(stale)

	logger := c.logger.With(log.FieldOwner, owner, log.FieldGeneration, gen)
	logger.InfoContext(ctx, "Loading owner data")

	var (
		cats []core.Category
		txs  []core.Transaction
		g    errgroup.Group
	)
	g.Go(func() error {
		list, err := c.gateway.ListCategories(ctx, owner)
		if err != nil {
			logger.WarnContext(ctx, "Failed to load categories, using empty list", "error", err)
			return nil
		}
		cats = list
		return nil
	})
	g.Go(func() error {
		list, err := c.gateway.ListTransactions(ctx, owner)
		if err != nil {
			logger.WarnContext(ctx, "Failed to load transactions, using empty list", "error", err)
			return nil
		}
		txs = list
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		logger.DebugContext(ctx, "Discarding superseded load")
		return nil
	}
	c.store.Replace(owner, cats, txs)
	c.mu.Unlock()
	c.bus.Notify()

	subs := c.subscribe(ctx, owner, logger)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.unsubscribe(subs)
		return nil
	}
	c.subs = subs
	c.state = Ready
	c.mu.Unlock()

	logger.InfoContext(ctx, "Owner data ready",
		"categories", len(cats),
		"transactions", len(txs))
	return nil
}

func (c *Controller) subscribe(ctx context.Context, owner string, logger *log.Logger) []remote.Subscription {
	var subs []remote.Subscription
	for _, table := range []remote.Table{remote.TableCategories, remote.TableTransactions} {
		sub, err := c.gateway.Subscribe(ctx, owner, table, func(ev remote.Event) {
			c.ApplyEvent(owner, ev)
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to subscribe to changes",
				log.FieldTable, string(table), "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

func (c *Controller) unsubscribe(subs []remote.Subscription) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("Failed to close subscription", "error", err)
		}
	}
}

// Deinitialize drops subscriptions and cached rows.
func (c *Controller) Deinitialize() {
	c.mu.Lock()
	c.generation++
	stale := c.subs
	c.subs = nil
	c.state = Unauthenticated
	c.owner = ""
	c.store.Clear()
	c.mu.Unlock()

	c.unsubscribe(stale)
	c.bus.Notify()
	c.logger.Info("Owner data cleared")
}

// Flush waits for in-flight remote writes.
func (c *Controller) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush remote writes: %w", ctx.Err())
	}
}

// Close stops following the identity provider, waits for pending writes,
// then clears the cache.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	stop := c.stopIdentity
	c.stopIdentity = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}

	err := c.Flush(ctx)
	c.Deinitialize()
	return err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Owner returns the owner being loaded or loaded, or "".
func (c *Controller) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// LoginError is the last identity check failure, cleared by a successful load.
func (c *Controller) LoginError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginErr
}

// Changes is the bus that fires after every cache mutation.
func (c *Controller) Changes() *notify.Bus {
	return c.bus
}

func (c *Controller) Store() *cache.Store {
	return c.store
}

func (c *Controller) Categories() []core.Category {
	return c.store.Categories()
}

func (c *Controller) CategoriesByType(t core.TxType) []core.Category {
	return c.store.CategoriesByType(t)
}

func (c *Controller) Transactions() []core.Transaction {
	return c.store.Transactions()
}

// Today is the controller clock's calendar day.
func (c *Controller) Today() core.Date {
	return core.Today(c.config.Now())
}

func (c *Controller) Now() time.Time {
	return c.config.Now()
}
