// Package grant implements call-scoped capability grants. A grant
// authorizes exactly one invocation of one operation on one target,
// with every argument fixed at construction time. It is never
// persisted: the enclosing treasury operation builds its grants,
// threads them to the adapter that performs the privileged call, and
// revokes whatever is left when the operation returns.
package grant

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrConsumed = errors.New("grant already consumed")
	ErrRevoked  = errors.New("grant revoked")
	ErrMismatch = errors.New("grant does not cover this call")
)

// Grant is a single-use capability bound to exact arguments.
type Grant struct {
	grantor   common.Address
	target    common.Address
	operation string
	args      []string

	mu       sync.Mutex
	consumed bool
	revoked  bool
}

// Grantor returns the authority on whose behalf the call is made.
func (g *Grant) Grantor() common.Address {
	return g.grantor
}

// Approve consumes the grant if and only if target, operation, and
// every argument match what the grant was built for. A consumed or
// revoked grant never approves again, whatever the arguments.
func (g *Grant) Approve(target common.Address, operation string, args ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.revoked {
		return ErrRevoked
	}
	if g.consumed {
		return ErrConsumed
	}
	if target != g.target || operation != g.operation || len(args) != len(g.args) {
		return ErrMismatch
	}
	for i := range args {
		if args[i] != g.args[i] {
			return ErrMismatch
		}
	}
	g.consumed = true
	return nil
}

func (g *Grant) revoke() {
	g.mu.Lock()
	g.revoked = true
	g.mu.Unlock()
}

// Builder constructs grants on behalf of a single grantor, collecting
// them into a set so the caller can revoke the lot on the way out.
type Builder struct {
	grantor common.Address
	set     *Set
}

func NewBuilder(grantor common.Address) *Builder {
	return &Builder{grantor: grantor, set: &Set{}}
}

// Grant builds a single-use capability for one call to operation on
// target with exactly args.
func (b *Builder) Grant(target common.Address, operation string, args ...string) *Grant {
	g := &Grant{
		grantor:   b.grantor,
		target:    target,
		operation: operation,
		args:      append([]string(nil), args...),
	}
	b.set.add(g)
	return g
}

// Set returns the builder's grant set. Callers defer Set().Revoke()
// so no grant outlives the invocation that created it.
func (b *Builder) Set() *Set {
	return b.set
}

// Set groups the grants of one invocation.
type Set struct {
	mu     sync.Mutex
	grants []*Grant
}

func (s *Set) add(g *Grant) {
	s.mu.Lock()
	s.grants = append(s.grants, g)
	s.mu.Unlock()
}

// Revoke invalidates every grant in the set, consumed or not.
func (s *Set) Revoke() {
	s.mu.Lock()
	grants := s.grants
	s.grants = nil
	s.mu.Unlock()
	for _, g := range grants {
		g.revoke()
	}
}
