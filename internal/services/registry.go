package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"meetsync/internal/config"
)

// RegistryConfig holds the per-actor settings
type RegistryConfig struct {
	SessionFreshness time.Duration
	OperationTimeout time.Duration
	ListingCacheTTL  time.Duration
}

// Registry lazily creates one actor per user and routes keep-alive firings to it
type Registry struct {
	sessions *SessionService
	timers   keepAliveTimers
	factory  ScraperFactory
	captions *CaptionClient
	site     func() *config.SiteProfile
	cfg      RegistryConfig

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewRegistry creates a registry. timers and captions may be nil.
func NewRegistry(sessions *SessionService, timers *KeepAliveScheduler, factory ScraperFactory, captions *CaptionClient, site func() *config.SiteProfile, cfg RegistryConfig) *Registry {
	if cfg.SessionFreshness <= 0 {
		cfg.SessionFreshness = 24 * time.Hour
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Minute
	}
	if cfg.ListingCacheTTL <= 0 {
		cfg.ListingCacheTTL = 10 * time.Minute
	}

	r := &Registry{
		sessions: sessions,
		factory:  factory,
		captions: captions,
		site:     site,
		cfg:      cfg,
		actors:   make(map[string]*Actor),
	}
	// Avoid storing a typed nil in the interface
	if timers != nil {
		r.timers = timers
	}
	return r
}

// Get returns the actor for userID, creating it on first use
func (r *Registry) Get(userID string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.actors[userID]; ok {
		return actor
	}
	actor := r.newActor(userID)
	r.actors[userID] = actor
	return actor
}

// Peek returns the user's actor if one exists, otherwise a detached actor that is not registered.
// Only store reads (Health, Dashboard, Analytics) go through it.
func (r *Registry) Peek(userID string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.actors[userID]; ok {
		return actor
	}
	actor := r.newActor(userID)
	actor.retired = true
	return actor
}

func (r *Registry) newActor(userID string) *Actor {
	return &Actor{
		userID:   userID,
		sessions: r.sessions,
		scraper:  r.factory(userID),
		captions: r.captions,
		timers:   r.timers,
		site:     r.site,
		// No janitor goroutine; expired listings are dropped on read
		listings:  cache.New(r.cfg.ListingCacheTTL, 0),
		freshness: r.cfg.SessionFreshness,
		opTimeout: r.cfg.OperationTimeout,
		now:       time.Now,
		lastUsed:  time.Now(),
	}
}

// Disconnect clears the user's session and drops the actor
func (r *Registry) Disconnect(ctx context.Context, userID string) error {
	actor := r.Get(userID)
	if err := actor.Disconnect(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.actors[userID] == actor {
		delete(r.actors, userID)
	}
	return nil
}

// KeepAlive implements KeepAliveRunner
func (r *Registry) KeepAlive(ctx context.Context, userID string) KeepAliveOutcome {
	return r.Get(userID).KeepAlive(ctx)
}

// ReapIdle closes browsers that have been idle for at least maxIdle and drops actors
// without a browser that have not run an operation for as long. It returns how many browsers were closed.
func (r *Registry) ReapIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed, evicted int
	for userID, actor := range r.actors {
		browserClosed, evict := actor.reap(maxIdle)
		if browserClosed {
			log.Printf("🧹 [REGISTRY] Closed idle browser for user %s", userID)
			closed++
		}
		if evict {
			delete(r.actors, userID)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("🧹 [REGISTRY] Dropped %d idle actors, %d remain", evicted, len(r.actors))
	}
	return closed
}

// LiveBrowsers counts actors holding a running browser
func (r *Registry) LiveBrowsers() int {
	var live int
	for _, actor := range r.snapshot() {
		if actor.scraper.Running() {
			live++
		}
	}
	return live
}

// Actors returns the number of registered actors
func (r *Registry) Actors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// CloseAll shuts down every browser, used on shutdown
func (r *Registry) CloseAll() {
	for _, actor := range r.snapshot() {
		actor.scraper.Close()
	}
}

func (r *Registry) snapshot() []*Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, actor := range r.actors {
		actors = append(actors, actor)
	}
	return actors
}
