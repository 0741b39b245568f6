package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives the exact-mode cache key from the normalized prompt
// and the identity of the attached context. Sixteen hex characters keep
// keys short while staying collision-safe at the cache's bounded scale.
func Fingerprint(prompt string, contexts []string) string {
	combined := normalize(prompt) + "|" + contextIdentity(contexts)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])[:16]
}

// contextIdentity hashes the sorted attached-context identities so that
// attachment order never changes the fingerprint.
func contextIdentity(contexts []string) string {
	if len(contexts) == 0 {
		return ""
	}
	sorted := make([]string, len(contexts))
	copy(sorted, contexts)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}

// normalize lowercases and collapses whitespace for fingerprinting and
// similarity comparison.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// wordSet splits a normalized string into its unique tokens.
func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes token-set similarity between two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
