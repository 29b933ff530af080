// Package ids computes the content-addressed identifiers used across the
// build core: asset ids, dependency ids, environment ids and the base62
// public ids assigned to bundles and assets.
//
// Hashing uses xxhash rather than a cryptographic hash: ids only need to be
// stable and collision-resistant for a single build's input set, not secure
// against an adversary, and xxhash is an order of magnitude cheaper on the
// hot discovery path.
package ids

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Hasher accumulates fields and produces a stable 64-bit digest. Fields are
// written in the order the caller supplies them, so callers must keep field
// order fixed across builds for a given id kind.
type Hasher struct {
	d *xxhash.Digest
}

// New returns a fresh Hasher.
func New() *Hasher {
	return &Hasher{d: xxhash.New()}
}

// WriteString feeds a string field into the digest, using a length prefix so
// that ("ab","c") and ("a","bc") never collide.
func (h *Hasher) WriteString(s string) *Hasher {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.d.Write(lenBuf[:])
	h.d.WriteString(s)
	return h
}

// WriteUint64 feeds a raw integer field into the digest.
func (h *Hasher) WriteUint64(v uint64) *Hasher {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.d.Write(buf[:])
	return h
}

// WriteBool feeds a boolean field into the digest.
func (h *Hasher) WriteBool(b bool) *Hasher {
	if b {
		return h.WriteUint64(1)
	}
	return h.WriteUint64(0)
}

// Sum64 returns the accumulated 64-bit digest.
func (h *Hasher) Sum64() uint64 {
	return h.d.Sum64()
}

// Hex returns the accumulated digest as 16 lower-case hex characters, the
// format spec §6 mandates for asset and dependency ids.
func (h *Hasher) Hex() string {
	return HexOf(h.Sum64())
}

// HexOf formats a 64-bit id as 16 lower-case hex characters.
func HexOf(id uint64) string {
	s := strconv.FormatUint(id, 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}

// Base62Of encodes a 64-bit id as base62, zero-padded to at least minLen
// characters on the left so prefix-uniqueness comparisons behave
// predictably for small ids.
func Base62Of(id uint64, minLen int) string {
	if id == 0 {
		return strings.Repeat(string(base62Alphabet[0]), maxInt(1, minLen))
	}
	var buf [64]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = base62Alphabet[id%62]
		id /= 62
	}
	s := string(buf[i:])
	for len(s) < minLen {
		s = string(base62Alphabet[0]) + s
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// PublicIDAssigner hands out the shortest-possible-but-unique base62 prefix
// of an entity's hex id, per spec §4.7/§6: "base62 prefix of the hex id,
// minimum length 5, extended until unique within its namespace."
type PublicIDAssigner struct {
	minLen   int
	assigned map[string]struct{}
}

// NewPublicIDAssigner creates an assigner with the given minimum id length.
func NewPublicIDAssigner(minLen int) *PublicIDAssigner {
	if minLen <= 0 {
		minLen = 5
	}
	return &PublicIDAssigner{
		minLen:   minLen,
		assigned: make(map[string]struct{}),
	}
}

// Assign returns a public id for the given 64-bit entity id, unique
// among every id previously returned by this assigner.
func (a *PublicIDAssigner) Assign(hexID uint64) string {
	full := Base62Of(hexID, a.minLen)
	for length := a.minLen; length <= len(full); length++ {
		candidate := full[:length]
		if _, taken := a.assigned[candidate]; !taken {
			a.assigned[candidate] = struct{}{}
			return candidate
		}
	}
	// Exhausted the natural encoding (astronomically unlikely): fall back to
	// the full string plus a disambiguating suffix.
	candidate := full
	suffix := 0
	for {
		try := candidate
		if suffix > 0 {
			try = candidate + strconv.Itoa(suffix)
		}
		if _, taken := a.assigned[try]; !taken {
			a.assigned[try] = struct{}{}
			return try
		}
		suffix++
	}
}
