// Package fingerprint computes the stable content hash used as the cache
// and in-flight-deduplication key: a hash over (prompt kind, normalized
// context payload, model identifier, temperature bucket).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ID is an opaque stable fingerprint.
type ID string

// Bucket rounds a temperature to a stable bucket so near-identical
// temperatures (0.70 vs 0.7000001) do not fragment the cache.
func Bucket(temperature float64) int {
	return int(math.Round(temperature * 100))
}

// Section is one normalized, sorted piece of context contributing to the
// canonical form; sections are rendered key-sorted so two logically
// equivalent requests produce byte-identical canonical text.
type Section struct {
	Key   string
	Value string
}

// Canonical builds the normalized payload used solely to compute the
// fingerprint: it sorts sections by key, collapses whitespace, and never
// includes the turn index, so two logically equivalent requests (same kind,
// same state, different turn number) share a fingerprint.
func Canonical(kind string, model string, temperature float64, sections []Section) string {
	sorted := make([]Section, len(sections))
	copy(sorted, sections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	fmt.Fprintf(&b, "kind=%s;model=%s;temp=%d;", kind, model, Bucket(temperature))
	for _, s := range sorted {
		b.WriteString(s.Key)
		b.WriteByte('=')
		b.WriteString(collapseWhitespace(s.Value))
		b.WriteByte(';')
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Compute hashes a canonical payload into a stable fingerprint id.
func Compute(canonical string) ID {
	sum := sha256.Sum256([]byte(canonical))
	return ID(hex.EncodeToString(sum[:]))
}
