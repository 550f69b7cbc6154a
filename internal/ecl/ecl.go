// Package ecl provides the single ECL fragment MRCM auto-maintenance
// needs (§4.7 step 4): "<< <conceptId>", the reflexive-transitive
// subtype closure. It is not a general ECL engine — any other shape
// returns ErrUnsupportedExpression, which callers treat as a
// ConversionError.
package ecl

import (
	"context"
	"errors"
	"strings"

	"github.com/ontocore/ontocore-server/internal/semindex"
)

var ErrUnsupportedExpression = errors.New("ecl: unsupported expression")

// Evaluate resolves expression against the semantic index for
// branch/stated, returning the set of concept ids it denotes.
// Evaluate only understands "<< conceptId" (descendant-or-self); it
// rejects anything else rather than guess at a larger ECL grammar.
func Evaluate(ctx context.Context, idx semindex.Index, branch string, stated bool, expression string) ([]string, error) {
	conceptID, ok := parseDescendantOrSelf(expression)
	if !ok {
		return nil, ErrUnsupportedExpression
	}
	return idx.DescendantsOfInclusive(ctx, branch, stated, conceptID)
}

func parseDescendantOrSelf(expression string) (string, bool) {
	trimmed := strings.TrimSpace(expression)
	rest, ok := strings.CutPrefix(trimmed, "<<")
	if !ok {
		return "", false
	}
	conceptID := strings.TrimSpace(rest)
	if conceptID == "" || !isDigits(conceptID) {
		return "", false
	}
	return conceptID, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
