// Package identifier allocates the 26 character public file identifiers.
package identifier

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"imagesaver/domain/image"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxByte is the largest multiple of len(alphabet) below 256. Bytes at or
// above it are discarded so every character is equally likely.
const maxByte = 256 - (256 % len(alphabet))

// Strategy names accepted by New
const (
	StrategyRandom = "random"
	StrategyULID   = "ulid"
)

// New returns the allocator for the named strategy
func New(strategy string) (image.IdentifierAllocator, error) {
	switch strategy {
	case "", StrategyRandom:
		return NewRandom(), nil
	case StrategyULID:
		return NewULID(), nil
	default:
		return nil, fmt.Errorf("unknown identifier strategy %q", strategy)
	}
}

// Random draws identifiers uniformly from [A-Za-z0-9] using crypto/rand
type Random struct {
	source io.Reader
}

// NewRandom creates a Random allocator reading from crypto/rand
func NewRandom() *Random {
	return &Random{source: rand.Reader}
}

// Allocate returns a fresh identifier
func (r *Random) Allocate() string {
	out := make([]byte, 0, image.IdentifierLength)
	buf := make([]byte, image.IdentifierLength*2)

	for len(out) < image.IdentifierLength {
		if _, err := io.ReadFull(r.source, buf); err != nil {
			// crypto/rand never fails on supported platforms
			panic(fmt.Sprintf("identifier: entropy source failed: %v", err))
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == image.IdentifierLength {
				break
			}
		}
	}

	return string(out)
}

// ULID allocates time-ordered identifiers. Monotonic entropy keeps ids
// generated within the same millisecond strictly increasing.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewULID creates a ULID allocator
func NewULID() *ULID {
	return &ULID{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Allocate returns a fresh ULID string
func (u *ULID) Allocate() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(u.now()), u.entropy)
	if err != nil {
		// Monotonic entropy overflowed within one millisecond; fall back to fresh entropy.
		id = ulid.MustNew(ulid.Timestamp(u.now()), rand.Reader)
	}
	return id.String()
}
