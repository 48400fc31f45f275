// Package normalize turns raw error reports into canonical, privacy-stripped
// signatures. Two reports of the same defect that differ only in paths, line
// numbers or user names normalize to the identical signature.
//
// All functions here are pure.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	pathToken  = "<path>"
	numToken   = "<n>"
	emailToken = "<email>"

	// hashLen is the number of hex characters of the content hash kept in
	// the signature. 48 bits keeps collisions negligible at registry scale.
	hashLen = 12

	maxKeyTokens = 3
)

// Message builds the normalized form of a raw error message: machine-specific
// paths, line/column numbers, emails and user names are replaced with fixed
// placeholder tokens, the text is lowercased and whitespace is collapsed.
//
// Message is idempotent: Message(Message(x)) == Message(x).
func Message(raw string) string {
	s := raw

	s = emailRe.ReplaceAllString(s, emailToken)
	// Home directories carry user names; strip them before generic paths.
	s = homeRe.ReplaceAllString(s, pathToken)
	s = winPathRe.ReplaceAllString(s, pathToken)
	s = unixPathRe.ReplaceAllString(s, pathToken)
	s = lineColRe.ReplaceAllString(s, numToken)
	s = hexRe.ReplaceAllString(s, numToken)
	s = intRe.ReplaceAllString(s, numToken)

	s = strings.ToLower(s)
	s = wsRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Signature derives the deterministic signature for an error report: a short
// semantic base (category plus key tokens of the normalized message) joined
// with a content hash of the normalized message.
func Signature(category, raw string) string {
	norm := Message(raw)

	sum := sha256.Sum256([]byte(norm))
	hash := hex.EncodeToString(sum[:])[:hashLen]

	parts := []string{identifier(category)}
	if tokens := keyTokens(norm); tokens != "" {
		parts = append(parts, tokens)
	}
	parts = append(parts, hash)
	return strings.Join(parts, ":")
}

// keyTokens extracts up to maxKeyTokens informative words from a normalized
// message, skipping placeholders and very short words.
func keyTokens(norm string) string {
	var tokens []string
	for _, w := range strings.Fields(norm) {
		w = strings.Trim(w, `.,;:'"()[]{}!?`)
		if len(w) < 3 || strings.HasPrefix(w, "<") {
			continue
		}
		if !wordRe.MatchString(w) {
			continue
		}
		tokens = append(tokens, w)
		if len(tokens) == maxKeyTokens {
			break
		}
	}
	return strings.Join(tokens, "_")
}

// identifier lowercases a category and replaces anything outside [a-z0-9_]
// with underscores, collapsing runs.
func identifier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "uncategorized"
	}
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		switch {
		case ok:
			b.WriteRune(r)
			prevUnderscore = false
		case !prevUnderscore:
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "uncategorized"
	}
	return out
}
