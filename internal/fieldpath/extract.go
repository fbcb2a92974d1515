package fieldpath

import "github.com/valpere/jsontran/internal/jsonvalue"

// Match is one string leaf reached by a path.
type Match struct {
	Address Address
	Text    string
}

// Extract walks record along p and returns every non-empty string leaf it
// reaches, in traversal order. Key tokens descend only into objects that
// hold the key; wildcards descend into every element of an array. Numbers,
// booleans, nulls, containers and empty strings at the end of the path are
// skipped.
func Extract(record *jsonvalue.Value, p Path) []Match {
	var out []Match
	walk(record, p.tokens, nil, &out)
	return out
}

func walk(node *jsonvalue.Value, tokens []Token, addr Address, out *[]Match) {
	if len(tokens) == 0 {
		if s, ok := node.AsString(); ok && s != "" {
			*out = append(*out, Match{Address: addr, Text: s})
		}
		return
	}

	tok, rest := tokens[0], tokens[1:]
	switch tok.Kind {
	case WildcardToken:
		for i, item := range node.Items() {
			walk(item, rest, addr.Append(Index(i)), out)
		}
	case KeyToken:
		if next, ok := node.Get(tok.Key); ok {
			walk(next, rest, addr.Append(Key(tok.Key)), out)
		}
	}
}
