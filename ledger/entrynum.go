/*
entrynum.go - Collision-resistant entry number generation

PURPOSE:
  Produces the human-facing, globally-unique entry numbers. A candidate is
  built from a monotonically increasing process-local counter, a coarse
  timestamp, and a short random suffix, then checked once against the store.

BEST-EFFORT, NOT A GUARANTEE:
  The store check here is an optimization that makes collisions rare, not a
  lock that makes them impossible. If the check finds a collision the
  generator perturbs the candidate with extra entropy and returns it WITHOUT
  re-checking: the writer's insert retry against the store's unique
  constraint is the authoritative conflict handler.

STATE:
  Counter state lives on the generator instance, owned by whoever constructs
  it (the sync coordinator in practice). One instance per process is enough;
  multiple processes fall back to the store constraint.

SEE ALSO:
  - writer.go: Retries inserts on ErrDuplicateNumber with a fresh number
*/
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// NUMBER GENERATOR
// =============================================================================

// NumberGenerator issues entry numbers of the form LED-<stamp>-<seq>-<suffix>,
// e.g. LED-SX3K2M-0042-9F3A. Safe for concurrent use.
type NumberGenerator struct {
	store   Store
	counter atomic.Uint64
	now     func() time.Time // test seam
}

// NewNumberGenerator creates a generator backed by the given store for the
// best-effort existence check.
func NewNumberGenerator(store Store) *NumberGenerator {
	return &NumberGenerator{store: store, now: time.Now}
}

// Next returns a fresh entry number. The result is checked once against the
// store; on a hit it is perturbed with additional entropy and returned
// without a second check.
func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	candidate := g.candidate()

	exists, err := g.store.NumberExists(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("check entry number: %w", err)
	}
	if exists {
		candidate = candidate + "-" + randomSuffix()
	}
	return candidate, nil
}

func (g *NumberGenerator) candidate() string {
	seq := g.counter.Add(1)
	stamp := strings.ToUpper(strconv.FormatInt(g.now().Unix(), 36))
	return fmt.Sprintf("LED-%s-%04d-%s", stamp, seq%10000, randomSuffix())
}

// randomSuffix returns four hex characters of UUID-derived entropy.
func randomSuffix() string {
	id := uuid.New()
	return strings.ToUpper(id.String()[:4])
}
