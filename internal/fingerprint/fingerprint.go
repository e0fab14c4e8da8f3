// Package fingerprint derives stable identifiers from article text and URLs.
// Two items that differ only in accents, casing, punctuation, or whitespace
// runs produce the same digest, which is what the deduplication layer keys on.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EmptyDigest is what Digest returns for empty or whitespace-only input.
// It equals the SHA-256 of the empty string.
const EmptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// maxSlugTitleLen bounds the human-readable part of a slug.
const maxSlugTitleLen = 60

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds text to a canonical form: accents stripped, lowercased,
// punctuation dropped, whitespace runs collapsed to single spaces.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; fall back to the raw text.
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// Punctuation and symbols are dropped.
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Digest hashes the normalized text. Deterministic, never an error; empty
// input maps to EmptyDigest.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL strips the parts of a URL that vary without changing the
// article it points to: scheme case, host case, query string, fragment,
// and a trailing slash.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// URLDigest is the deduplication key for a candidate article.
func URLDigest(raw string) string {
	return Digest(CanonicalURL(raw))
}

// Slug renders a title as a bounded, ASCII-only, hyphenated identifier and
// appends a short digest suffix so identical titles still get distinct slugs.
func Slug(title, digest string) string {
	var b strings.Builder
	for _, r := range Normalize(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	slug := collapseHyphens(b.String())
	if len(slug) > maxSlugTitleLen {
		slug = strings.Trim(slug[:maxSlugTitleLen], "-")
	}
	if slug == "" {
		slug = "brief"
	}

	if len(digest) >= 8 {
		slug += "-" + digest[:8]
	}
	return slug
}

func collapseHyphens(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
