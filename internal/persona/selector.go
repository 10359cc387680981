package persona

import (
	"math/rand"
	"sync"
	"time"
)

// Score bands for persona assignment.
const (
	AggressiveMinScore = 80
	BalancedMinScore   = 60
)

// Context carries the lead details beyond the score that influence selection.
type Context struct {
	LoanType string
	Urgent   bool
}

// Source is the randomness used to break ties inside a bucket.
type Source interface {
	Intn(n int) int
}

// Selector maps a lead score to a persona. Ties within a bucket are broken
// by the injected source, so a seeded selector is fully reproducible.
type Selector struct {
	mu  sync.Mutex
	src Source
}

// NewSelector returns a selector seeded with seed. A zero seed uses the clock.
func NewSelector(seed int64) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSelectorWithSource(rand.New(rand.NewSource(seed)))
}

// NewSelectorWithSource uses src for tie-breaks.
func NewSelectorWithSource(src Source) *Selector {
	return &Selector{src: src}
}

// Candidates returns the bucket a score falls into. Useful for tests and for
// explaining an assignment.
func Candidates(score int, ctx Context) []string {
	switch {
	case score >= AggressiveMinScore:
		return []string{MichelleChen, JasmineLee}
	case score >= BalancedMinScore:
		if ctx.LoanType == "refinance" || ctx.LoanType == "commercial" {
			return []string{SarahWong}
		}
		return []string{RachelTan}
	default:
		return []string{GraceLim}
	}
}

// Select picks a persona for the score.
func (s *Selector) Select(score int, ctx Context) Persona {
	ids := Candidates(score, ctx)
	id := ids[0]
	if len(ids) > 1 {
		s.mu.Lock()
		id = ids[s.src.Intn(len(ids))]
		s.mu.Unlock()
	}
	p, _ := Lookup(id)
	return p
}
