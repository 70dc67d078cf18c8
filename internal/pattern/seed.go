package pattern

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"strings"
)

// SeedResolver derives deterministic seeds for mutators and jitter.
type SeedResolver struct {
	cfg SeedsConfig
}

func NewSeedResolver(cfg SeedsConfig) SeedResolver {
	return SeedResolver{cfg: cfg}
}

// Resolve picks the seed string by precedence: explicit, per-type override,
// default seed, then fallback.
func (r SeedResolver) Resolve(explicit, kind, fallback string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.cfg.Overrides[kind]); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.cfg.Default); s != "" {
		return s
	}
	return fallback
}

// SeedFor resolves and hashes the seed string into a 64-bit seed.
func (r SeedResolver) SeedFor(explicit, kind, fallback string) int64 {
	return HashSeed(r.Resolve(explicit, kind, fallback))
}

// Rand returns a generator for the resolved seed.
func (r SeedResolver) Rand(explicit, kind, fallback string) *rand.Rand {
	return NewRand(r.SeedFor(explicit, kind, fallback))
}

// HashSeed interprets the first 8 bytes of the SHA-256 digest of s as a
// big-endian signed integer.
func HashSeed(s string) int64 {
	sum := sha256.Sum256([]byte(s))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// NewRand builds the deterministic generator used by every seeded component.
func NewRand(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(u, u^0x9e3779b97f4a7c15))
}
