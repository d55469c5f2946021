package cart

import (
	"context"

	"cart-service/internal/models"
)

// Pending is the deferred result of a submitted cart operation.
type Pending struct {
	done  chan struct{}
	state models.CartState
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) complete(state models.CartState, err error) {
	p.state = state
	p.err = err
	close(p.done)
}

// Done is closed once the operation has committed or was refused.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation commits and returns the cart state right
// after it. A cancelled ctx stops the wait, not the operation.
func (p *Pending) Wait(ctx context.Context) (models.CartState, error) {
	select {
	case <-p.done:
		return p.state, p.err
	case <-ctx.Done():
		return models.CartState{}, ctx.Err()
	}
}
