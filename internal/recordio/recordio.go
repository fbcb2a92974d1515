// Package recordio reads and writes record files: a single JSON value (an
// object or an array of records) or JSON Lines with one record per line.
package recordio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valpere/jsontran/internal/jsonvalue"
)

type Format int

const (
	// FormatAuto picks JSONL for *.jsonl files. Other files are parsed as
	// one JSON value, falling back to JSON Lines when that fails.
	FormatAuto Format = iota
	FormatJSON
	FormatJSONL
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONL:
		return "jsonl"
	default:
		return "auto"
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format %q (want auto, json or jsonl)", s)
	}
}

// Document is the content of one record file. Single is set when a JSON
// file held a bare value rather than an array, so it is written back the
// same way.
type Document struct {
	Records []*jsonvalue.Value
	Format  Format
	Single  bool
}

// Extensions lists the file extensions List picks up.
var Extensions = []string{".json", ".jsonl"}

// List returns the record files directly inside dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range Extensions {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Read loads the file at path.
func Read(path string, f Format) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	if f == FormatAuto && strings.EqualFold(filepath.Ext(path), ".jsonl") {
		f = FormatJSONL
	}
	doc, err := Decode(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// Decode parses data in format f. With FormatAuto the data is tried as one
// JSON value first and as JSON Lines second.
func Decode(data []byte, f Format) (*Document, error) {
	switch f {
	case FormatJSON:
		return decodeJSON(data)
	case FormatJSONL:
		return decodeLines(data)
	default:
		doc, err := decodeJSON(data)
		if err == nil {
			return doc, nil
		}
		if lines, lerr := decodeLines(data); lerr == nil {
			return lines, nil
		}
		return nil, err
	}
}

func decodeJSON(data []byte) (*Document, error) {
	v, err := jsonvalue.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if v.Kind() == jsonvalue.Array {
		return &Document{Records: v.Items(), Format: FormatJSON}, nil
	}
	return &Document{Records: []*jsonvalue.Value{v}, Format: FormatJSON, Single: true}, nil
}

func decodeLines(data []byte) (*Document, error) {
	doc := &Document{Format: FormatJSONL}
	rest := data
	for lineno := 1; len(rest) > 0; lineno++ {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte("\n"))
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		v, err := jsonvalue.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineno, err)
		}
		doc.Records = append(doc.Records, v)
	}
	return doc, nil
}

// Encode renders doc in its own format. JSON is indented by two spaces;
// JSON Lines holds one compact record per line.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if doc.Format == FormatJSONL {
		for i, rec := range doc.Records {
			line, err := jsonvalue.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}

	payload := jsonvalue.NewArray(doc.Records...)
	if doc.Single && len(doc.Records) == 1 {
		payload = doc.Records[0]
	}
	out, err := jsonvalue.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	buf.Write(out)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Write encodes doc and replaces path atomically, creating parent
// directories as needed.
func Write(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeFileAtomic(path, data, 0644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
