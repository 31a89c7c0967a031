// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package authctx

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
)

// Default redirect targets.
const (
	DefaultLoginPath   = "/login"
	DefaultNeutralPath = "/"
)

// ErrNotMounted is returned when an Auth handle is requested from a provider
// that was never mounted or has been unmounted.
var ErrNotMounted = errors.New("auth provider is not mounted")

// RoleResolver maps a session to a principal. *access.Resolver and the HTTP
// profile client both satisfy it.
type RoleResolver interface {
	Resolve(ctx context.Context, session *auth.Session) (access.Principal, error)
}

// Navigator is the UI's router.
type Navigator interface {
	// CurrentPath returns the path being viewed.
	CurrentPath() string
	// Redirect navigates to target.
	Redirect(target string)
}

// Config wires a Provider.
type Config struct {
	Sessions  auth.IdentityProvider
	Resolver  RoleResolver
	Navigator Navigator

	// Routes gives the minimum role for the current path. Nil means no path
	// is protected and the provider never redirects.
	Routes *access.RouteTable

	LoginPath   string
	NeutralPath string

	// ResolveTimeout bounds each resolution. Zero means no deadline.
	ResolveTimeout time.Duration

	Logger *slog.Logger
}

// Provider runs the auth state machine. Create one with Mount.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	seq        uint64
	mounted    bool
	cancelCur  context.CancelFunc
	changed    chan struct{}
	listeners  map[uint64]func(State)
	order      []uint64
	nextListen uint64

	// Commits enqueue deliveries under mu. Whoever finds no dispatcher
	// running drains the queue with mu released, so listeners observe states
	// in commit order and a commit made from inside a listener never waits.
	queue       []delivery
	dispatching bool

	base        context.Context
	cancelBase  context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// Mount creates a Provider in the Loading state, subscribes it to session
// changes and starts the first resolution.
func Mount(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Sessions == nil {
		return nil, oops.Code("AUTHCTX_INVALID_CONFIG").Errorf("session store is required")
	}
	if cfg.Resolver == nil {
		return nil, oops.Code("AUTHCTX_INVALID_CONFIG").Errorf("role resolver is required")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.NeutralPath == "" {
		cfg.NeutralPath = DefaultNeutralPath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Provider{
		cfg:        cfg,
		logger:     logger.With("component", "authctx"),
		state:      loading(0),
		mounted:    true,
		changed:    make(chan struct{}),
		listeners:  make(map[uint64]func(State)),
		base:       base,
		cancelBase: cancel,
	}
	p.unsubscribe = cfg.Sessions.OnChange(func(*auth.Session) {
		p.refresh("session_change")
	})
	p.refresh("mount")
	return p, nil
}

// Auth returns the handle UI code reads auth state through. It fails with
// ErrNotMounted for a nil or unmounted provider.
func (p *Provider) Auth() (*Auth, error) {
	if p == nil {
		return nil, oops.Code("AUTHCTX_NOT_MOUNTED").Wrap(ErrNotMounted)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return nil, oops.Code("AUTHCTX_NOT_MOUNTED").Wrap(ErrNotMounted)
	}
	return &Auth{p: p}, nil
}

// State returns the current state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn to receive every committed state, in commit order.
// fn may change the session or navigate; the resulting commits are delivered
// after fn returns. fn must not call Unmount synchronously.
func (p *Provider) Subscribe(fn func(State)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextListen
	p.nextListen++
	p.listeners[id] = fn
	p.order = append(p.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.listeners, id)
			for i, v := range p.order {
				if v == id {
					p.order = append(p.order[:i], p.order[i+1:]...)
					break
				}
			}
		})
	}
}

// WaitSettled blocks until the state is no longer Loading or ctx is done.
func (p *Provider) WaitSettled(ctx context.Context) (State, error) {
	for {
		p.mu.Lock()
		state, changed := p.state, p.changed
		p.mu.Unlock()
		if state.Status != StatusLoading {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, oops.Code("AUTHCTX_WAIT_CANCELLED").Wrap(ctx.Err())
		}
	}
}

// Refresh re-runs resolution as if the session had changed.
func (p *Provider) Refresh() {
	p.refresh("manual")
}

// Navigated re-applies the redirect rule for the current state after the
// navigator moved to a new path. It does not re-resolve the session.
func (p *Provider) Navigated() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	target := p.redirectTarget(p.state)
	if target == "" {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, delivery{target: target})
	p.dispatchLocked()
}

// SignOut invalidates the session with the identity provider and forces the
// state to Unauthenticated before returning, whether or not the provider call
// succeeded.
func (p *Provider) SignOut(ctx context.Context) error {
	err := p.cfg.Sessions.SignOut(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "identity provider sign-out failed", "error", err)
	}

	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return err
	}
	p.seq++
	if p.cancelCur != nil {
		p.cancelCur()
		p.cancelCur = nil
	}
	p.commitLocked(unauthenticated(p.seq), "sign_out")

	if err != nil {
		return oops.Code("AUTHCTX_SIGNOUT_FAILED").Wrap(err)
	}
	return nil
}

// Unmount stops the provider: it unsubscribes from the session store, cancels
// any in-flight resolution and waits for it to finish. Safe to call twice.
func (p *Provider) Unmount() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	p.mounted = false
	if p.cancelCur != nil {
		p.cancelCur()
		p.cancelCur = nil
	}
	p.mu.Unlock()

	p.unsubscribe()
	p.cancelBase()
	p.wg.Wait()
}

// refresh moves to Loading and starts a resolution that supersedes any
// pending one.
func (p *Provider) refresh(reason string) {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	p.seq++
	seq := p.seq
	if p.cancelCur != nil {
		p.cancelCur()
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.cfg.ResolveTimeout > 0 {
		ctx, cancel = context.WithTimeout(p.base, p.cfg.ResolveTimeout)
	} else {
		ctx, cancel = context.WithCancel(p.base)
	}
	p.cancelCur = cancel
	p.wg.Add(1)
	p.commitLocked(loading(seq), reason)

	go p.resolve(ctx, cancel, seq)
}

func (p *Provider) resolve(ctx context.Context, cancel context.CancelFunc, seq uint64) {
	defer p.wg.Done()
	defer cancel()

	next := p.evaluate(ctx, seq)

	p.mu.Lock()
	if !p.mounted || seq != p.seq {
		p.mu.Unlock()
		p.logger.Debug("discarding superseded resolution", "seq", seq)
		return
	}
	p.cancelCur = nil
	p.commitLocked(next, "resolved")
}

func (p *Provider) evaluate(ctx context.Context, seq uint64) State {
	session, err := p.cfg.Sessions.Current(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "session lookup failed", "seq", seq, "error", err)
		return unauthenticated(seq)
	}
	if session == nil {
		return unauthenticated(seq)
	}

	principal, err := p.cfg.Resolver.Resolve(ctx, session)
	if err != nil {
		p.logger.WarnContext(ctx, "role resolution failed",
			"seq", seq,
			"subject_id", session.SubjectID(),
			"error", err)
		return unauthenticated(seq)
	}
	return authenticated(seq, principal)
}

// delivery is one queued notification. Redirect-only deliveries carry no
// state.
type delivery struct {
	prev, next State
	reason     string
	listeners  []func(State)
	notify     bool
	target     string
}

// commitLocked installs next and queues its notification and any redirect.
// Must be called with p.mu held; returns with it released.
func (p *Provider) commitLocked(next State, reason string) {
	prev := p.state
	p.state = next
	close(p.changed)
	p.changed = make(chan struct{})

	listeners := make([]func(State), 0, len(p.order))
	for _, id := range p.order {
		listeners = append(listeners, p.listeners[id])
	}
	p.queue = append(p.queue, delivery{
		prev:      prev,
		next:      next,
		reason:    reason,
		listeners: listeners,
		notify:    true,
		target:    p.redirectTarget(next),
	})
	p.dispatchLocked()
}

// dispatchLocked drains the queue unless another call is already draining it.
// Must be called with p.mu held; returns with it released.
func (p *Provider) dispatchLocked() {
	if p.dispatching {
		p.mu.Unlock()
		return
	}
	p.dispatching = true
	for len(p.queue) > 0 {
		d := p.queue[0]
		p.queue[0] = delivery{}
		p.queue = p.queue[1:]
		p.mu.Unlock()
		p.deliver(d)
		p.mu.Lock()
	}
	p.dispatching = false
	p.mu.Unlock()
}

func (p *Provider) deliver(d delivery) {
	if d.notify {
		if d.prev.Status != d.next.Status {
			p.logger.Debug("auth state changed",
				"from", d.prev.Status.String(),
				"to", d.next.Status.String(),
				"seq", d.next.Seq,
				"reason", d.reason)
		}
		for _, fn := range d.listeners {
			fn(d.next)
		}
	}
	if d.target != "" {
		p.cfg.Navigator.Redirect(d.target)
	}
}

// redirectTarget decides where next sends the caller, or "" to stay.
func (p *Provider) redirectTarget(next State) string {
	if p.cfg.Navigator == nil || p.cfg.Routes == nil {
		return ""
	}
	path := p.cfg.Navigator.CurrentPath()
	required := p.cfg.Routes.Requirement(path)

	switch next.Status {
	case StatusUnauthenticated:
		if required == access.RoleNone || path == p.cfg.LoginPath {
			return ""
		}
		return p.cfg.LoginPath + "?redirectTo=" + url.QueryEscape(path)
	case StatusAuthenticated:
		if access.Permits(next.Role, required) || path == p.cfg.NeutralPath {
			return ""
		}
		return p.cfg.NeutralPath
	default:
		return ""
	}
}
