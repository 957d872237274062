package users

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/session"
)

// ErrStale is returned by Load when a newer load or an invalidation
// overtook it; its result was discarded.
var ErrStale = errors.New("users: load superseded")

type Gateway interface {
	ListUsers(ctx context.Context, roleID, userID string) (apiclient.UsersResponse, error)
	DeleteUser(ctx context.Context, userID string) (apiclient.Ack, error)
}

type loadKey struct {
	roleID string
	userID string
}

// Result is what the table renders.
type Result struct {
	Users    []Record `json:"users"`
	Shown    int      `json:"shown"`
	Total    int      `json:"total"`
	Roles    []string `json:"roles"`
	Statuses []string `json:"statuses"`
	Sorts    []string `json:"sorts"`
	Query    Query    `json:"query"`
	Loaded   bool     `json:"loaded"`
}

// Pipeline caches one browser's user list and its query state.
type Pipeline struct {
	gateway Gateway
	log     zerolog.Logger

	mu      sync.Mutex
	records []Record
	loaded  bool
	key     loadKey
	gen     uint64
	query   Query
}

func NewPipeline(gateway Gateway, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		log:     log.With().Str("component", "users").Logger(),
		query:   DefaultQuery(),
	}
}

// Observe invalidates the cached list whenever the session's identity
// changes. The returned func stops observing.
func (p *Pipeline) Observe(sess *session.Session) func() {
	return sess.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.EventSignedIn, session.EventTokenCleared, session.EventCleared:
			p.Invalidate()
		}
	})
}

// Load fetches the list for (roleID, userID) unless it is already cached
// for exactly that pair. The whole list is replaced on success.
func (p *Pipeline) Load(ctx context.Context, roleID, userID string) error {
	key := loadKey{roleID: roleID, userID: userID}

	p.mu.Lock()
	if p.loaded && p.key == key {
		p.mu.Unlock()
		return nil
	}
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	resp, err := p.gateway.ListUsers(ctx, roleID, userID)
	if err != nil {
		p.log.Error().Err(err).Str("role_id", roleID).Str("user_id", userID).Msg("failed to fetch users")
		return err
	}
	records := FromRawList(resp.Data)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if gen != p.gen {
		return ErrStale
	}
	p.records = records
	p.loaded = true
	p.key = key
	return nil
}

// Refresh forces a fetch even when the pair is cached.
func (p *Pipeline) Refresh(ctx context.Context, roleID, userID string) error {
	p.Invalidate()
	return p.Load(ctx, roleID, userID)
}

// Invalidate drops the cached list and orphans any load in flight.
func (p *Pipeline) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
	p.loaded = false
	p.gen++
}

func (p *Pipeline) Query() Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

func (p *Pipeline) SetQuery(q Query) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = q.Normalized()
}

func (p *Pipeline) ClearFilters() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = p.query.Cleared()
}

func (p *Pipeline) View() Result {
	p.mu.Lock()
	records := p.records
	q := p.query
	loaded := p.loaded
	p.mu.Unlock()

	shown := Apply(records, q)
	return Result{
		Users:    shown,
		Shown:    len(shown),
		Total:    len(records),
		Roles:    Roles(records),
		Statuses: Statuses,
		Sorts:    SortKeys,
		Query:    q,
		Loaded:   loaded,
	}
}

// Delete asks the backend to remove a user. The cached list is left as is;
// callers refresh explicitly if they want the row gone.
func (p *Pipeline) Delete(ctx context.Context, userID string) (apiclient.Ack, error) {
	ack, err := p.gateway.DeleteUser(ctx, userID)
	if err != nil {
		p.log.Error().Err(err).Str("user_id", userID).Msg("failed to delete user")
		return nil, err
	}
	return ack, nil
}
