package recordio_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/valpere/jsontran/internal/jsonvalue"
	"github.com/valpere/jsontran/internal/recordio"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    recordio.Format
		wantErr bool
	}{
		{in: "", want: recordio.FormatAuto},
		{in: "auto", want: recordio.FormatAuto},
		{in: "JSON", want: recordio.FormatJSON},
		{in: "jsonl", want: recordio.FormatJSONL},
		{in: "csv", wantErr: true},
	}
	for _, tt := range tests {
		got, err := recordio.ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.jsonl", "{}")
	writeFile(t, dir, "a.json", "{}")
	writeFile(t, dir, "notes.txt", "x")
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := recordio.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.jsonl")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestDecode_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  recordio.Format
		records int
		single  bool
		out     recordio.Format
	}{
		{name: "object", data: `{"a":"x"}`, format: recordio.FormatJSON, records: 1, single: true, out: recordio.FormatJSON},
		{name: "array of one", data: `[{"a":"x"}]`, format: recordio.FormatJSON, records: 1, out: recordio.FormatJSON},
		{name: "array", data: `[{"a":"x"},{"a":"y"}]`, format: recordio.FormatAuto, records: 2, out: recordio.FormatJSON},
		{name: "lines", data: "{\"a\":\"x\"}\n\n{\"a\":\"y\"}\n", format: recordio.FormatJSONL, records: 2, out: recordio.FormatJSONL},
		{name: "auto lines", data: "{\"a\":\"x\"}\n{\"a\":\"y\"}", format: recordio.FormatAuto, records: 2, out: recordio.FormatJSONL},
		{name: "empty lines file", data: "\n\n", format: recordio.FormatJSONL, records: 0, out: recordio.FormatJSONL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := recordio.Decode([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(doc.Records) != tt.records || doc.Single != tt.single || doc.Format != tt.out {
				t.Errorf("got %d records single=%v format=%v", len(doc.Records), doc.Single, doc.Format)
			}
		})
	}
}

func TestDecode_LineNumberInError(t *testing.T) {
	_, err := recordio.Decode([]byte("{\"a\":1}\n\n{broken\n"), recordio.FormatJSONL)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected error naming line 3, got %v", err)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := recordio.Decode([]byte(`{"a":`), recordio.FormatJSON); err == nil {
		t.Fatal("expected error")
	}
}

func TestEncode_PreservesShape(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "single object", data: `{"b":"<x>","a":1}`, want: "{\n  \"b\": \"<x>\",\n  \"a\": 1\n}\n"},
		{name: "array of one", data: `[{"a":"x"}]`, want: "[\n  {\n    \"a\": \"x\"\n  }\n]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := recordio.Decode([]byte(tt.data), recordio.FormatJSON)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			out, err := recordio.Encode(doc)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Encode() = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestEncode_Lines(t *testing.T) {
	doc := &recordio.Document{
		Format:  recordio.FormatJSONL,
		Records: []*jsonvalue.Value{jsonvalue.NewString("你好"), jsonvalue.NewNull()},
	}
	out, err := recordio.Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != "\"你好\"\nnull\n" {
		t.Errorf("Encode() = %q", out)
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "data.jsonl", "{\"q\":\"Hi\"}\n{\"q\":\"Bye\"}\n")

	doc, err := recordio.Read(in, recordio.FormatAuto)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.Format != recordio.FormatJSONL {
		t.Errorf("format = %v, want jsonl", doc.Format)
	}

	out := filepath.Join(dir, "result", "data.jsonl")
	if err := recordio.Write(out, doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "{\"q\":\"Hi\"}\n{\"q\":\"Bye\"}\n" {
		t.Errorf("written = %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestRead_ErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bad.json", "{")

	_, err := recordio.Read(in, recordio.FormatJSON)
	if err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
