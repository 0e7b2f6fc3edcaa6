// Package app assembles the stores, services, and background workers into a
// runnable application.
package app

import (
	"context"
	"time"

	"github.com/waitroomxyz/api/internal/app/httpapi"
	"github.com/waitroomxyz/api/internal/app/ranking"
	"github.com/waitroomxyz/api/internal/app/services/identity"
	"github.com/waitroomxyz/api/internal/app/services/projects"
	"github.com/waitroomxyz/api/internal/app/services/referrals"
	"github.com/waitroomxyz/api/internal/app/services/rescore"
	"github.com/waitroomxyz/api/internal/app/services/shares"
	"github.com/waitroomxyz/api/internal/app/services/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage"
	"github.com/waitroomxyz/api/internal/app/storage/memory"
	"github.com/waitroomxyz/api/internal/app/system"
	"github.com/waitroomxyz/api/internal/emailcheck"
	"github.com/waitroomxyz/api/internal/logging"
	"github.com/waitroomxyz/api/internal/metrics"
)

// Stores groups the persistence interfaces. Nil fields fall back to a shared
// in-memory store, which keeps tests and keyless local runs simple.
type Stores struct {
	Users     storage.UserStore
	Projects  storage.ProjectStore
	Entries   storage.EntryStore
	Referrals storage.ReferralStore
	Shares    storage.ShareStore
}

func (s *Stores) fillDefaults() {
	var mem *memory.Store
	ensure := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if s.Users == nil {
		s.Users = ensure()
	}
	if s.Projects == nil {
		s.Projects = ensure()
	}
	if s.Entries == nil {
		s.Entries = ensure()
	}
	if s.Referrals == nil {
		s.Referrals = ensure()
	}
	if s.Shares == nil {
		s.Shares = ensure()
	}
}

// Options carries the tunables the services need.
type Options struct {
	JWTSecret []byte
	TokenTTL  time.Duration

	// EmailChecker defaults to a syntax-only check.
	EmailChecker emailcheck.Checker
	// RankCache may be nil to disable caching.
	RankCache *ranking.Cache
	// Metrics may be nil to disable instrumentation.
	Metrics *metrics.Metrics

	// RescoreSchedule is a cron expression; empty disables the worker.
	RescoreSchedule string
}

// Application owns the wired services and their lifecycle.
type Application struct {
	Identity *identity.Service
	Projects *projects.Service
	Waitlist *waitlist.Service
	Handler  *httpapi.Handler

	manager *system.Manager
	cache   *ranking.Cache
	log     *logging.Logger
}

// New wires an Application from stores and options.
func New(stores Stores, opts Options, log *logging.Logger) *Application {
	if log == nil {
		log = logging.NewDefault("app")
	}
	stores.fillDefaults()

	refs := referrals.New(stores.Referrals, stores.Entries, log.WithField("component", "referrals"))
	shrs := shares.New(stores.Shares, log.WithField("component", "shares"))
	ids := identity.New(stores.Users, opts.EmailChecker, opts.JWTSecret, opts.TokenTTL, log.WithField("component", "identity"))
	projs := projects.New(stores.Projects, log.WithField("component", "projects"))
	wl := waitlist.New(stores.Entries, stores.Projects, refs, shrs, opts.EmailChecker, opts.RankCache, opts.Metrics, log.WithField("component", "waitlist"))

	manager := system.NewManager(log)
	if opts.RescoreSchedule != "" {
		manager.Register(rescore.New(stores.Projects, wl, opts.RescoreSchedule, log.WithField("component", "rescore")))
	}

	return &Application{
		Identity: ids,
		Projects: projs,
		Waitlist: wl,
		Handler:  httpapi.New(ids, projs, wl, opts.Metrics, log.WithField("component", "httpapi")),
		manager:  manager,
		cache:    opts.RankCache,
		log:      log,
	}
}

// Start brings up the background workers.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts the workers down and closes the cache connection.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	if cerr := a.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
