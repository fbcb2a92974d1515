package fieldpath

import "github.com/valpere/jsontran/internal/jsonvalue"

// Discover lists the dotted paths of every string member reachable through
// nested objects of record, in document order. Arrays are not entered, so
// strings inside sequences are never discovered; pass explicit wildcard
// paths for those. A record that is not an object yields nothing.
//
// Keys containing '.', '[' or ']' produce paths that do not re-parse to the
// same key and will therefore not match during extraction.
func Discover(record *jsonvalue.Value) []string {
	var out []string
	discover(record, "", &out)
	return out
}

func discover(node *jsonvalue.Value, prefix string, out *[]string) {
	for _, k := range node.Keys() {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		v, _ := node.Get(k)
		switch v.Kind() {
		case jsonvalue.String:
			*out = append(*out, full)
		case jsonvalue.Object:
			discover(v, full, out)
		}
	}
}
