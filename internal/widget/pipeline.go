package widget

import (
	"context"
	"errors"
)

// errSuperseded is returned internally when a newer request took over.
var errSuperseded = errors.New("superseded")

// pipeline is one cancellation domain. Each request takes a new token; only
// the holder of the current token may commit. All methods require the
// widget mutex.
type pipeline struct {
	token  uint64
	cancel context.CancelFunc
}

// begin issues a new token and cancels the previous request's context. The
// returned context keeps parent's values but not its cancellation, so a
// request ends only when it is superseded, invalidated or finished.
func (p *pipeline) begin(parent context.Context) (uint64, context.Context) {
	if p.cancel != nil {
		p.cancel()
	}
	p.token++
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	p.cancel = cancel
	return p.token, ctx
}

// current reports whether tok is still the newest token.
func (p *pipeline) current(tok uint64) bool {
	return p.token == tok
}

// invalidate supersedes any in-flight request without starting a new one.
func (p *pipeline) invalidate() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.token++
}

// finish releases the context of a request that completed while current.
func (p *pipeline) finish(tok uint64) {
	if p.token == tok && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
