// Package normalize turns free-text party names into match keys.
//
// Canonicalize produces the equality key used for exact matching. RootKey
// produces a coarser key from the leading significant tokens of a name, used
// only after exact matching has failed.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinRootLength is the shortest root key accepted as a match key.
const MinRootLength = 6

// rootTokens is the number of significant tokens kept in a root key.
const rootTokens = 3

// minSignificantToken is the shortest token that counts toward a root key.
const minSignificantToken = 3

// MinLocationLength is the shortest location key accepted as a match key.
const MinLocationLength = 4

var (
	punctuation = strings.NewReplacer(".", "", ",", "", "-", "", "'", "", `"`, "")

	// Whole-word organizational suffixes removed wherever they appear.
	anywhereTokens = regexp.MustCompile(`\b(LLC|INC|CORP|CORPORATION|LTD|THE|COMPANY)\b`)

	// Suffixes removed only when they end the name.
	trailingLP = regexp.MustCompile(`\bLP\s*$`)
	trailingCO = regexp.MustCompile(`\bCO\s*$`)
)

// Canonicalize returns the canonical match key for a raw name.
// The result is upper-cased, free of the punctuation . , - ' " and of legal
// suffixes (LLC, INC, CORP, CORPORATION, LTD, THE, COMPANY, trailing LP and
// trailing CO), with single spaces between tokens. Empty input yields "".
//
// Canonicalize is idempotent.
func Canonicalize(raw string) string {
	s := collapse(punctuation.Replace(strings.ToUpper(raw)))
	for {
		next := strip(s)
		if next == s {
			return s
		}
		s = next
	}
}

func strip(s string) string {
	s = trailingLP.ReplaceAllString(s, "")
	s = anywhereTokens.ReplaceAllString(s, "")
	s = trailingCO.ReplaceAllString(collapse(s), "")
	return collapse(s)
}

// collapse trims s and reduces every whitespace run to a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RootKey returns the first three tokens longer than two characters of the
// canonical form of raw, joined by a single space. The result may be empty or
// too short to use; check it with ValidRoot.
func RootKey(raw string) string {
	tokens := strings.Fields(Canonicalize(raw))
	kept := make([]string, 0, rootTokens)
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minSignificantToken {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == rootTokens {
			break
		}
	}
	return strings.Join(kept, " ")
}

// ValidRoot reports whether root is long enough to be trusted as a match key.
func ValidRoot(root string) bool {
	return utf8.RuneCountInString(root) >= MinRootLength
}

// LocationKey returns the leading token of a multi-word name, upper-cased and
// free of punctuation. Legal suffixes are not removed, so "Acme LLC" keys on
// "ACME". Single-token names and leading tokens shorter than
// MinLocationLength characters yield "".
//
// Facility entities are commonly named after their town, so two entities
// attached to the same property that share a location key usually belong to
// the same operator ("WHITESBURG SNF REALTY", "WHITESBURG SNF OPERATIONS").
func LocationKey(raw string) string {
	tokens := strings.Fields(punctuation.Replace(strings.ToUpper(raw)))
	if len(tokens) < 2 || utf8.RuneCountInString(tokens[0]) < MinLocationLength {
		return ""
	}
	return tokens[0]
}
