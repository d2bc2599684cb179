// Package session keeps one catalog engine and editor per signed-in user.
package session

import (
	"context"
	"fmt"
	"time"

	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/editor"
	"keerthanaapi/internal/logging"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Session is a user's working state between sign-in and sign-out.
type Session struct {
	UserID   string
	Engine   *catalog.Engine
	Editor   *editor.Editor
	OpenedAt time.Time
}

type Config struct {
	Store    catalog.Store
	Verifier catalog.Verifier
	Uploader editor.Uploader
	// Notifiers returns the notification channel for a user. Optional.
	Notifiers func(userID string) catalog.Notifier
	// IdleTTL closes sessions nobody touched for this long.
	IdleTTL time.Duration
	// LoadTimeout bounds the initial collection load. Default 10s.
	LoadTimeout time.Duration
}

type Registry struct {
	cfg     Config
	cache   *gocache.Cache
	opening singleflight.Group
}

func NewRegistry(cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 12 * time.Hour
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	cleanup := cfg.IdleTTL / 2
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}

	r := &Registry{
		cfg:   cfg,
		cache: gocache.New(cfg.IdleTTL, cleanup),
	}
	r.cache.OnEvicted(func(userID string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Engine.Close()
			logging.Default().Debug().Str("user_id", userID).Msg("session closed")
		}
	})
	return r
}

// Open returns the user's session, creating and loading it on first use.
// Concurrent first calls for the same user share one load.
func (r *Registry) Open(ctx context.Context, userID string) (*Session, error) {
	if s, ok := r.Get(userID); ok {
		return s, nil
	}

	v, err, _ := r.opening.Do(userID, func() (interface{}, error) {
		if s, ok := r.Get(userID); ok {
			return s, nil
		}

		var opts []catalog.Option
		opts = append(opts, catalog.WithVerifier(r.cfg.Verifier))
		if r.cfg.Notifiers != nil {
			opts = append(opts, catalog.WithNotifier(r.cfg.Notifiers(userID)))
		}
		engine := catalog.NewEngine(r.cfg.Store, opts...)

		// Other callers share this load, so it must outlive the first one's request.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.LoadTimeout)
		defer cancel()
		if err := engine.Load(loadCtx); err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}

		s := &Session{
			UserID:   userID,
			Engine:   engine,
			Editor:   editor.New(r.cfg.Uploader),
			OpenedAt: time.Now(),
		}
		r.cache.SetDefault(userID, s)
		logging.FromContext(ctx).Info().Str("user_id", userID).Int("entries", engine.Len()).Msg("session opened")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Get returns an open session and extends its idle deadline.
func (r *Registry) Get(userID string) (*Session, bool) {
	v, ok := r.cache.Get(userID)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	r.cache.SetDefault(userID, s)
	return s, true
}

// Close tears the session down. Pending actions are discarded.
func (r *Registry) Close(userID string) {
	r.cache.Delete(userID)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Engine implements catalog.EngineSource.
func (r *Registry) Engine(ctx context.Context, userID string) (*catalog.Engine, error) {
	s, err := r.Open(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Engine, nil
}

// Editor implements editor.Sessions.
func (r *Registry) Editor(ctx context.Context, userID string) (*editor.Editor, *catalog.Engine, error) {
	s, err := r.Open(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return s.Editor, s.Engine, nil
}
