// Package fieldpath addresses string leaves inside JSON records.
//
// A path expression is a dotted key list with optional [*] wildcards, for
// example "question[*][*].content" or "metadata.description". Parse turns
// an expression into tokens; Extract walks a record along those tokens and
// reports the concrete Address and text of every non-empty string it
// reaches; SetAt writes a value back to an Address.
package fieldpath

import "regexp"

// TokenKind distinguishes a named key from the [*] wildcard.
type TokenKind int

const (
	KeyToken TokenKind = iota
	WildcardToken
)

// Token is one segment of a parsed path expression.
type Token struct {
	Kind TokenKind
	Key  string
}

// Path is an immutable, parsed path expression.
type Path struct {
	raw    string
	tokens []Token
}

var segmentPattern = regexp.MustCompile(`\[\*\]|[^.\[\]]+`)

// Parse tokenizes expr. It never fails: segments that are not "[*]" become
// key tokens, and stray brackets or dots are dropped. An expression that
// makes no structural sense simply matches nothing.
func Parse(expr string) Path {
	segments := segmentPattern.FindAllString(expr, -1)
	tokens := make([]Token, 0, len(segments))
	for _, seg := range segments {
		if seg == "[*]" {
			tokens = append(tokens, Token{Kind: WildcardToken})
			continue
		}
		tokens = append(tokens, Token{Kind: KeyToken, Key: seg})
	}
	return Path{raw: expr, tokens: tokens}
}

// Tokens returns a copy of the parsed tokens.
func (p Path) Tokens() []Token {
	out := make([]Token, len(p.tokens))
	copy(out, p.tokens)
	return out
}

// String returns the expression the path was parsed from.
func (p Path) String() string { return p.raw }
