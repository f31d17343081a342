// Package optimistic implements the client side update pattern used for post
// interactions: apply the tentative state and counter adjustment immediately,
// settle against the authoritative endpoint in the background, and restore
// the captured pre-image if the remote call fails or times out.
package optimistic

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Kind identifies one toggleable interaction on a resource.
type Kind string

const (
	KindLike  Kind = "like"
	KindSave  Kind = "save"
	KindShare Kind = "share"
)

// DefaultTimeout bounds a remote settlement. Without it a hung remote call
// would leave the (resource, kind) pair pending forever and permanently block
// further toggles.
const DefaultTimeout = 10 * time.Second

// Remote is the authoritative mutation endpoint for one interaction kind.
type Remote interface {
	Activate(ctx context.Context, resourceId string) error
	Deactivate(ctx context.Context, resourceId string) error
}

// State is the observable snapshot for one (resource, kind). Err carries the
// human readable message of the most recent failed attempt and is cleared by
// the next successful one.
type State struct {
	Active bool
	Count  int64
	Err    string
}

type stateKey struct {
	resourceId string
	kind       Kind
}

// Controller runs one implicit state machine per (resource, kind): Idle until
// Toggle, Pending while the remote mutation is in flight, back to Idle on
// settlement. A second Toggle while Pending is dropped, not queued, so remote
// writes for one pair can never reorder.
type Controller struct {
	mu      sync.Mutex
	remotes map[Kind]Remote
	states  map[stateKey]State
	pending map[stateKey]bool
	timeout time.Duration
}

// Option customizes a Controller.
type Option func(*Controller)

// WithTimeout overrides DefaultTimeout for remote settlements.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

func NewController(remotes map[Kind]Remote, opts ...Option) *Controller {
	c := &Controller{
		remotes: remotes,
		states:  map[stateKey]State{},
		pending: map[stateKey]bool{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed installs authoritative state for a pair, used when the caller loads or
// re-fetches the resource. Seeding a pending pair is skipped, the in-flight
// settlement owns the state until it finishes.
func (c *Controller) Seed(resourceId string, kind Kind, active bool, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := stateKey{resourceId, kind}
	if c.pending[key] {
		return
	}
	c.states[key] = State{Active: active, Count: count}
}

// Snapshot returns the currently displayed state for a pair.
func (c *Controller) Snapshot(resourceId string, kind Kind) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[stateKey{resourceId, kind}]
}

// IsPending reports whether a settlement is in flight for the pair.
func (c *Controller) IsPending(resourceId string, kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[stateKey{resourceId, kind}]
}

// Toggle flips the interaction for the pair and returns immediately; the
// caller observes the outcome through Snapshot. While the previous toggle of
// the same pair is unsettled the call is a no-op.
func (c *Controller) Toggle(resourceId string, kind Kind) {
	c.mu.Lock()
	key := stateKey{resourceId, kind}
	remote := c.remotes[kind]
	if c.pending[key] || remote == nil {
		c.mu.Unlock()
		return
	}

	preImage := c.states[key]
	tentative := State{Active: !preImage.Active, Count: preImage.Count + 1}
	if !tentative.Active {
		tentative.Count = preImage.Count - 1
	}
	c.pending[key] = true
	c.states[key] = tentative
	c.mu.Unlock()

	go c.settle(key, preImage, tentative, func(ctx context.Context) error {
		if tentative.Active {
			return remote.Activate(ctx, resourceId)
		}
		return remote.Deactivate(ctx, resourceId)
	})
}

// Share bumps the share counter optimistically. Sharing has no toggle and no
// active flag, only the increment is rolled back on failure.
func (c *Controller) Share(resourceId string) {
	c.mu.Lock()
	key := stateKey{resourceId, KindShare}
	remote := c.remotes[KindShare]
	if c.pending[key] || remote == nil {
		c.mu.Unlock()
		return
	}

	preImage := c.states[key]
	tentative := State{Count: preImage.Count + 1}
	c.pending[key] = true
	c.states[key] = tentative
	c.mu.Unlock()

	go c.settle(key, preImage, tentative, func(ctx context.Context) error {
		return remote.Activate(ctx, resourceId)
	})
}

func (c *Controller) settle(key stateKey, preImage State, tentative State, invoke func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	err := invoke(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer delete(c.pending, key)

	if err != nil {
		// Restore the pre-image captured before the optimistic apply. Deriving
		// the rollback from the already mutated state would double count.
		preImage.Err = fmt.Sprintf("failed to update %s, please try again", key.kind)
		c.states[key] = preImage
		return
	}
	tentative.Err = ""
	c.states[key] = tentative
}
