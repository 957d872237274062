// Package console wires the per-browser components together. A Workspace is
// everything one browser tab-set sees; the Registry hands them out by
// browser id.
package console

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/auth"
	"usermgmt/console/internal/kv"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/metrics"
	"usermgmt/console/internal/notify"
	"usermgmt/console/internal/profile"
	"usermgmt/console/internal/session"
	"usermgmt/console/internal/shell"
	"usermgmt/console/internal/users"
)

type Settings struct {
	Avatars            profile.AvatarResolver
	PreviewBaseURL     string
	LoginRedirectDelay time.Duration
	ProfileCloseDelay  time.Duration
}

type Workspace struct {
	BrowserID string
	Session   *session.Session
	Notices   *notify.Queue
	Gateway   *apiclient.Client
	Auth      *auth.Flow
	Shell     *shell.Shell
	Users     *users.Pipeline
	Profile   *profile.Editor

	stopObserving func()
}

// Close detaches the workspace from its session and drops any open editor.
func (w *Workspace) Close(ctx context.Context) {
	w.stopObserving()
	w.Profile.Close(ctx)
}

type entry struct {
	ws       *Workspace
	lastUsed time.Time
}

type Registry struct {
	store    kv.Store
	sealer   session.Sealer
	gateway  *apiclient.Client
	stager   media.Stager
	settings Settings
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(store kv.Store, sealer session.Sealer, gateway *apiclient.Client, stager media.Stager, settings Settings, log zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		sealer:   sealer,
		gateway:  gateway,
		stager:   stager,
		settings: settings,
		log:      log,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Get returns the workspace for browserID, building it on first use.
func (r *Registry) Get(browserID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[browserID]; ok {
		e.lastUsed = r.now()
		return e.ws
	}

	ws := r.build(browserID)
	r.entries[browserID] = &entry{ws: ws, lastUsed: r.now()}
	metrics.SetWorkspaces(len(r.entries))
	return ws
}

func (r *Registry) build(browserID string) *Workspace {
	log := r.log.With().Str("browser", browserID).Logger()
	sess := session.New(r.store, browserID, r.sealer)
	notices := notify.NewQueue(r.store, browserID)
	gateway := r.gateway.ForBrowser(sess.Token)

	pipeline := users.NewPipeline(gateway, log)
	ws := &Workspace{
		BrowserID: browserID,
		Session:   sess,
		Notices:   notices,
		Gateway:   gateway,
		Auth:      auth.NewFlow(gateway, r.stager, notices, r.settings.LoginRedirectDelay, log),
		Shell:     shell.New(gateway, sess, r.settings.Avatars, log),
		Users:     pipeline,
		Profile: profile.NewEditor(gateway, r.stager, notices, profile.Config{
			Avatars:        r.settings.Avatars,
			PreviewBaseURL: r.settings.PreviewBaseURL,
			CloseDelay:     r.settings.ProfileCloseDelay,
		}, log),
	}
	ws.stopObserving = pipeline.Observe(sess)
	return ws
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops workspaces unused for longer than idle. Their stored keys stay
// in the kv store; a returning browser gets a fresh workspace over them.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Workspace
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.ws)
			delete(r.entries, id)
		}
	}
	metrics.SetWorkspaces(len(r.entries))
	r.mu.Unlock()

	for _, ws := range stale {
		ws.Close(ctx)
	}
	if len(stale) > 0 {
		r.log.Debug().Int("count", len(stale)).Msg("swept idle workspaces")
	}
	return len(stale)
}
