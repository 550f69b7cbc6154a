// Package owlexpr parses the compact SNOMED OWL functional-syntax
// subset carried in an OWL-axiom reference-set member's owlExpression
// additional field (§3, §4.6 phase C): enough to recover the set of
// concept ids an axiom references, not a general OWL 2 parser (no
// pack example carries one, and the spec's own fragment is
// intentionally minimal).
//
// Grammar:
//
//	expr       := conceptRef | functionCall
//	conceptRef := ":" digits
//	functionCall := name "(" expr* ")"
package owlexpr

import (
	"fmt"
	"strings"
)

// Expression is either a ConceptRef or a FunctionCall.
type Expression interface {
	isExpression()
}

// ConceptRef is a bare concept-id literal, e.g. ":73211009".
type ConceptRef struct {
	ConceptID string
}

func (ConceptRef) isExpression() {}

// FunctionCall is a named node with nested arguments, e.g.
// SubClassOf(:73211009 ObjectSomeValuesFrom(:609096000 :419284002)).
type FunctionCall struct {
	Name string
	Args []Expression
}

func (FunctionCall) isExpression() {}

// Parse parses a complete owlExpression string. Any trailing
// content after a well-formed top-level expression is an error, as is
// an expression that consumes no tokens.
func Parse(s string) (Expression, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("owlexpr: unexpected trailing input at token %d (%q)", p.pos, p.toks[p.pos])
	}
	return expr, nil
}

// ReferencedConcepts parses s and returns the set of concept ids it
// references. Parsing the same expression twice yields the same set
// (§8 testable property).
func ReferencedConcepts(s string) (map[string]struct{}, error) {
	expr, err := Parse(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	collect(expr, out)
	return out, nil
}

func collect(e Expression, out map[string]struct{}) {
	switch v := e.(type) {
	case ConceptRef:
		out[v.ConceptID] = struct{}{}
	case FunctionCall:
		for _, a := range v.Args {
			collect(a, out)
		}
	}
}

// tokenize splits s into "(", ")" and bare atoms, whitespace
// separated.
func tokenize(s string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	if len(toks) == 0 {
		return nil, fmt.Errorf("owlexpr: empty expression")
	}
	return toks, nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (string, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) parseExpr() (Expression, error) {
	tok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("owlexpr: unexpected end of expression")
	}
	if tok == "(" || tok == ")" {
		return nil, fmt.Errorf("owlexpr: unexpected %q", tok)
	}
	if strings.HasPrefix(tok, ":") {
		id := tok[1:]
		if id == "" || !isDigits(id) {
			return nil, fmt.Errorf("owlexpr: malformed concept reference %q", tok)
		}
		return ConceptRef{ConceptID: id}, nil
	}

	// Anything else must be a function name followed immediately by
	// a parenthesised, possibly empty, argument list.
	open, ok := p.next()
	if !ok || open != "(" {
		return nil, fmt.Errorf("owlexpr: expected '(' after %q", tok)
	}
	var args []Expression
	for {
		next, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("owlexpr: unterminated argument list for %q", tok)
		}
		if next == ")" {
			p.pos++
			break
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return FunctionCall{Name: tok, Args: args}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
