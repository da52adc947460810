package chromosome

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
)

var ErrInvalidLength = errors.New("chromosome length must be > 0")

// Chromosome is a feature-selection mask, one gene per candidate feature.
type Chromosome []bool

// Population is an ordered set of chromosomes; duplicates are allowed.
type Population []Chromosome

// Generate draws length independent Bernoulli(0.5) genes.
func Generate(rng *rand.Rand, length int) (Chromosome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}
	c := make(Chromosome, length)
	for i := range c {
		c[i] = rng.Intn(2) == 1
	}
	return c, nil
}

// GeneratePopulation returns size independently generated chromosomes.
func GeneratePopulation(rng *rand.Rand, length, size int) (Population, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0: got %d", size)
	}
	population := make(Population, 0, size)
	for i := 0; i < size; i++ {
		c, err := Generate(rng, length)
		if err != nil {
			return nil, err
		}
		population = append(population, c)
	}
	return population, nil
}

// Full returns the chromosome selecting every feature.
func Full(length int) Chromosome {
	c := make(Chromosome, length)
	for i := range c {
		c[i] = true
	}
	return c
}

// Parse is the inverse of String.
func Parse(label string) (Chromosome, error) {
	if label == "" {
		return nil, ErrInvalidLength
	}
	c := make(Chromosome, len(label))
	for i, r := range label {
		switch r {
		case '0':
		case '1':
			c[i] = true
		default:
			return nil, fmt.Errorf("invalid gene %q at position %d", r, i)
		}
	}
	return c, nil
}

// String renders genes as 0/1 characters, first gene first.
func (c Chromosome) String() string {
	var b strings.Builder
	b.Grow(len(c))
	for _, gene := range c {
		if gene {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Identity is the bit pattern read as an unsigned integer, most-significant
// gene first.
func (c Chromosome) Identity() *big.Int {
	id := new(big.Int)
	for _, gene := range c {
		id.Lsh(id, 1)
		if gene {
			id.SetBit(id, 0, 1)
		}
	}
	return id
}

// Key identifies the bit pattern. Chromosomes of different lengths never
// share a key even when their identities are equal.
func (c Chromosome) Key() string {
	return strconv.Itoa(len(c)) + ":" + c.Identity().Text(16)
}

func (c Chromosome) Clone() Chromosome {
	if c == nil {
		return nil
	}
	out := make(Chromosome, len(c))
	copy(out, c)
	return out
}

func (c Chromosome) Equal(other Chromosome) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// SelectedCount returns the number of True genes.
func (c Chromosome) SelectedCount() int {
	n := 0
	for _, gene := range c {
		if gene {
			n++
		}
	}
	return n
}

func (p Population) Clone() Population {
	if p == nil {
		return nil
	}
	out := make(Population, len(p))
	for i := range p {
		out[i] = p[i].Clone()
	}
	return out
}
