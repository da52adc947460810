package fitness

import (
	"errors"
	"fmt"

	"featsel/internal/chromosome"
)

var ErrLengthMismatch = errors.New("chromosome length differs from cached chromosomes")

// Func computes the fitness of a chromosome.
type Func func(chromosome.Chromosome) (float64, error)

type Stats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Cache memoizes an expensive fitness function by chromosome identity. The
// wrapped function runs at most once per distinct bit pattern; failed
// evaluations are never stored. Entries are never evicted.
//
// A Cache is owned by a single engine and is not safe for concurrent use.
type Cache struct {
	fn      Func
	length  int
	entries map[string]float64
	hits    int
	misses  int
}

func NewCache(fn Func) (*Cache, error) {
	if fn == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	return &Cache{
		fn:      fn,
		entries: make(map[string]float64),
	}, nil
}

// Evaluate returns the cached fitness for c, computing it on first sight.
// Errors from the wrapped function are returned unchanged.
func (c *Cache) Evaluate(ch chromosome.Chromosome) (float64, error) {
	if c.length == 0 {
		c.length = len(ch)
	} else if len(ch) != c.length {
		return 0, fmt.Errorf("%w: got=%d want=%d", ErrLengthMismatch, len(ch), c.length)
	}

	key := ch.Key()
	if value, ok := c.entries[key]; ok {
		c.hits++
		return value, nil
	}
	value, err := c.fn(ch)
	if err != nil {
		return 0, err
	}
	c.misses++
	c.entries[key] = value
	return value, nil
}

func (c *Cache) Stats() Stats {
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
