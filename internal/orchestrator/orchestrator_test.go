package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/valpere/jsontran/internal/arbiter"
	"github.com/valpere/jsontran/internal/jsonvalue"
	"github.com/valpere/jsontran/internal/refiner"
	"github.com/valpere/jsontran/internal/translator"
)

// mockTranslator prefixes every text and records the batches it saw.
type mockTranslator struct {
	prefix  string
	batches [][]string
	last    translator.BatchRequest
	err     error
}

func (m *mockTranslator) Name() string { return "mock" }

func (m *mockTranslator) TranslateBatch(_ context.Context, req translator.BatchRequest) ([]string, error) {
	m.last = req
	m.batches = append(m.batches, append([]string(nil), req.Texts...))
	if m.err != nil {
		return nil, m.err
	}
	out := make([]string, len(req.Texts))
	for i, s := range req.Texts {
		out[i] = m.prefix + s
	}
	return out, nil
}

// mockJudge rejects every translation containing reject.
type mockJudge struct {
	reject   string
	feedback string
	requests []arbiter.ReviewRequest
}

func (m *mockJudge) Name() string { return "mock-judge" }

func (m *mockJudge) Review(_ context.Context, req arbiter.ReviewRequest) ([]arbiter.Verdict, error) {
	m.requests = append(m.requests, req)
	out := make([]arbiter.Verdict, len(req.Pairs))
	for i, p := range req.Pairs {
		if strings.Contains(p.Translation, m.reject) {
			out[i] = arbiter.Verdict{OK: false, Feedback: m.feedback}
		} else {
			out[i] = arbiter.Verdict{OK: true}
		}
	}
	return out, nil
}

// mockRefiner answers with answer(req) and records every request.
type mockRefiner struct {
	answer   func(req refiner.Request) string
	requests []refiner.Request
}

func (m *mockRefiner) Refine(_ context.Context, req refiner.Request) (string, error) {
	m.requests = append(m.requests, req)
	return m.answer(req), nil
}

type mapMemory struct {
	entries map[string]string
	stored  []string
}

func (m *mapMemory) Lookup(_ context.Context, text, targetLang, model string) (string, bool, error) {
	v, ok := m.entries[text+"|"+targetLang+"|"+model]
	return v, ok, nil
}

func (m *mapMemory) Remember(_ context.Context, text, translation, targetLang, model string) error {
	m.stored = append(m.stored, text+"="+translation)
	return nil
}

func parseRecords(t *testing.T, docs ...string) []*jsonvalue.Value {
	t.Helper()
	out := make([]*jsonvalue.Value, len(docs))
	for i, d := range docs {
		v, err := jsonvalue.Parse([]byte(d))
		if err != nil {
			t.Fatalf("parse %q: %v", d, err)
		}
		out[i] = v
	}
	return out
}

func marshalAll(t *testing.T, records []*jsonvalue.Value) []string {
	t.Helper()
	out := make([]string, len(records))
	for i, r := range records {
		b, err := jsonvalue.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		out[i] = string(b)
	}
	return out
}

func TestCollect_ConfiguredPaths(t *testing.T) {
	records := parseRecords(t,
		`{"q":[[{"content":"a"},{"content":""}],[{"content":"b"}]],"title":"t1"}`,
		`{"q":[],"title":"t2"}`,
	)

	tasks := Collect(records, []string{"title", "q[*][*].content", "title"})

	var got []string
	for _, tk := range tasks {
		got = append(got, tk.Address.String()+"="+tk.Text)
	}
	want := []string{"title=t1", "q[0][0].content=a", "q[1][0].content=b", "title=t1", "title=t2", "title=t2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
	if tasks[4].Record != 1 {
		t.Errorf("task 4 record = %d, want 1", tasks[4].Record)
	}
}

func TestCollect_Discovery(t *testing.T) {
	records := parseRecords(t, `{"title":"Hello","meta":{"note":"Hi","n":3},"tags":["x"]}`)

	tasks := Collect(records, nil)
	if len(tasks) != 2 || tasks[0].Text != "Hello" || tasks[1].Text != "Hi" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if tasks[1].Address.String() != "meta.note" {
		t.Errorf("address = %q, want meta.note", tasks[1].Address.String())
	}
}

func TestAssemble_LeavesOriginalsUntouched(t *testing.T) {
	records := parseRecords(t, `{"a":"x","b":{"c":"y"},"n":1}`)
	tasks := Collect(records, []string{"a", "b.c", "a"})

	out, err := Assemble(records, tasks, []string{"X1", "Y", "X2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshalAll(t, out)[0]; got != `{"a":"X2","b":{"c":"Y"},"n":1}` {
		t.Errorf("assembled = %s", got)
	}
	if got := marshalAll(t, records)[0]; got != `{"a":"x","b":{"c":"y"},"n":1}` {
		t.Errorf("original mutated: %s", got)
	}
}

func TestAssemble_LengthMismatch(t *testing.T) {
	records := parseRecords(t, `{"a":"x"}`)
	if _, err := Assemble(records, Collect(records, nil), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestExecute_EchoPreservesStructure(t *testing.T) {
	records := parseRecords(t,
		`{"id":7,"question":[[{"role":"user","content":"Hi"}],[{"content":"Bye"}]],"ok":true}`,
		`{"id":8,"question":[[{"content":""}]]}`,
	)
	tr := &mockTranslator{}
	o := New(tr, Config{TargetLang: "Chinese", Model: "m", BatchSize: 10})

	res, err := o.Execute(context.Background(), records, []string{"question[*][*].content"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		`{"id":7,"question":[[{"role":"user","content":"Hi"}],[{"content":"Bye"}]],"ok":true}`,
		`{"id":8,"question":[[{"content":""}]]}`,
	}
	if got := marshalAll(t, res.Records); !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}
	if res.Stats.Tasks != 2 || res.Stats.Batches != 1 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
	if tr.last.TargetLang != "Chinese" || tr.last.Model != "m" {
		t.Errorf("settings not passed: %+v", tr.last)
	}
}

func TestExecute_NoTasksReturnsInput(t *testing.T) {
	records := parseRecords(t, `{"n":1}`)
	tr := &mockTranslator{}
	o := New(tr, Config{TargetLang: "French"})

	res, err := o.Execute(context.Background(), records, []string{"missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Records[0] != records[0] {
		t.Error("expected the input records back")
	}
	if len(tr.batches) != 0 {
		t.Errorf("translator called %d times", len(tr.batches))
	}
}

func TestExecute_BatchesAndProgress(t *testing.T) {
	records := parseRecords(t, `{"a":"1","b":"2","c":"3","d":"4","e":"5"}`)
	tr := &mockTranslator{prefix: "T:"}
	var progress []int
	o := New(tr, Config{TargetLang: "French", BatchSize: 2}, WithProgress(func(done, total int) {
		if total != 5 {
			t.Errorf("total = %d, want 5", total)
		}
		progress = append(progress, done)
	}))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.Batches != 3 {
		t.Errorf("batches = %d, want 3", res.Stats.Batches)
	}
	wantBatches := [][]string{{"1", "2"}, {"3", "4"}, {"5"}}
	if !reflect.DeepEqual(tr.batches, wantBatches) {
		t.Errorf("batches = %v, want %v", tr.batches, wantBatches)
	}
	if !reflect.DeepEqual(progress, []int{0, 2, 4, 5}) {
		t.Errorf("progress = %v", progress)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"T:1","b":"T:2","c":"T:3","d":"T:4","e":"T:5"}` {
		t.Errorf("record = %s", got)
	}
}

func TestExecute_TranslatorErrorIsFatal(t *testing.T) {
	records := parseRecords(t, `{"a":"x"}`)
	boom := errors.New("boom")
	o := New(&mockTranslator{err: boom}, Config{TargetLang: "French"})

	if _, err := o.Execute(context.Background(), records, nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestExecute_JudgeRepairsRejected(t *testing.T) {
	records := parseRecords(t, `{"title":"Open file","body":"Close window"}`)
	tr := &mockTranslator{prefix: "bad:"}
	judge := &mockJudge{reject: "bad:Close", feedback: "too literal"}
	ref := &mockRefiner{answer: func(refiner.Request) string { return "Fermez la fenêtre" }}
	o := New(tr, Config{
		TargetLang:      "French",
		Model:           "gpt",
		JudgeModel:      "judge",
		RepairModel:     "gpt-repair",
		MaxRepairRounds: 1,
		Glossary:        map[string]string{"file": "fichier"},
	}, WithJudge(judge, ref))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"title":"bad:Open file","body":"Fermez la fenêtre"}` {
		t.Errorf("record = %s", got)
	}

	if len(judge.requests) != 1 {
		t.Fatalf("judge called %d times, want 1", len(judge.requests))
	}
	if jr := judge.requests[0]; jr.Model != "judge" || jr.TargetLang != "French" || len(jr.Pairs) != 2 {
		t.Errorf("unexpected judge request: %+v", jr)
	}

	if len(ref.requests) != 1 {
		t.Fatalf("refiner called %d times, want 1", len(ref.requests))
	}
	want := refiner.Request{
		Original:   "Close window",
		Previous:   "bad:Close window",
		Feedback:   "too literal",
		TargetLang: "French",
		Model:      "gpt-repair",
		Glossary:   map[string]string{"file": "fichier"},
	}
	if !reflect.DeepEqual(ref.requests[0], want) {
		t.Errorf("repair request = %+v, want %+v", ref.requests[0], want)
	}
	if res.Stats.Rejected != 1 || res.Stats.Repaired != 1 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
}

func TestExecute_RepairRoundsAreBounded(t *testing.T) {
	records := parseRecords(t, `{"a":"x"}`)
	tr := &mockTranslator{prefix: "bad:"}
	judge := &mockJudge{reject: "bad", feedback: "still wrong"}
	ref := &mockRefiner{answer: func(req refiner.Request) string { return req.Previous + "+bad" }}
	o := New(tr, Config{TargetLang: "French", MaxRepairRounds: 2}, WithJudge(judge, ref))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(judge.requests) != 2 {
		t.Errorf("judge called %d times, want 2", len(judge.requests))
	}
	if len(ref.requests) != 2 {
		t.Errorf("refiner called %d times, want 2", len(ref.requests))
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"bad:x+bad+bad"}` {
		t.Errorf("record = %s", got)
	}
}

func TestExecute_ZeroRepairRoundsOnlyJudges(t *testing.T) {
	records := parseRecords(t, `{"a":"x"}`)
	judge := &mockJudge{reject: "x", feedback: "no"}
	ref := &mockRefiner{answer: func(refiner.Request) string { return "never" }}
	o := New(&mockTranslator{}, Config{TargetLang: "French", MaxRepairRounds: 0}, WithJudge(judge, ref))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ref.requests) != 0 {
		t.Errorf("refiner called %d times", len(ref.requests))
	}
	if res.Stats.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", res.Stats.Rejected)
	}
}

func TestExecute_MemorySkipsKnownTexts(t *testing.T) {
	records := parseRecords(t, `{"a":"known","b":"new"}`)
	mem := &mapMemory{entries: map[string]string{"known|French|m": "connu"}}
	tr := &mockTranslator{prefix: "T:"}
	o := New(tr, Config{TargetLang: "French", Model: "m"}, WithMemory(mem))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"connu","b":"T:new"}` {
		t.Errorf("record = %s", got)
	}
	if !reflect.DeepEqual(tr.batches, [][]string{{"new"}}) {
		t.Errorf("batches = %v", tr.batches)
	}
	if res.Stats.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", res.Stats.CacheHits)
	}
	if !reflect.DeepEqual(mem.stored, []string{"new=T:new"}) {
		t.Errorf("stored = %v", mem.stored)
	}
}

// sequenceTranslator answers each text with its position across all calls.
type sequenceTranslator struct {
	calls int
}

func (m *sequenceTranslator) Name() string { return "sequence" }

func (m *sequenceTranslator) TranslateBatch(_ context.Context, req translator.BatchRequest) ([]string, error) {
	out := make([]string, len(req.Texts))
	for i := range req.Texts {
		m.calls++
		out[i] = fmt.Sprintf("%s#%d", req.Texts[i], m.calls)
	}
	return out, nil
}

func TestExecute_DuplicateAddressLastWriteWins(t *testing.T) {
	records := parseRecords(t, `{"a":"x","b":"y"}`)
	o := New(&sequenceTranslator{}, Config{TargetLang: "French", BatchSize: 1})

	res, err := o.Execute(context.Background(), records, []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.Tasks != 3 || res.Stats.Batches != 3 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"x#3","b":"y#2"}` {
		t.Errorf("record = %s, want the later translation of a", got)
	}
}

func TestExecute_MemoryUsesSeparateKey(t *testing.T) {
	records := parseRecords(t, `{"a":"known"}`)
	mem := &mapMemory{entries: map[string]string{"known|French|google": "connu"}}
	tr := &mockTranslator{prefix: "T:"}
	o := New(tr, Config{TargetLang: "French", MemoryModel: "google"}, WithMemory(mem))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"connu"}` {
		t.Errorf("record = %s", got)
	}
	if len(tr.batches) != 0 {
		t.Errorf("translator called for a remembered text: %v", tr.batches)
	}
}

func TestExecute_JudgeReviewsCachedTranslations(t *testing.T) {
	records := parseRecords(t, `{"a":"hello","b":"fresh"}`)
	mem := &mapMemory{entries: map[string]string{"hello|French|m": "bad:hello"}}
	tr := &mockTranslator{prefix: "T:"}
	judge := &mockJudge{reject: "bad:", feedback: "unreviewed"}
	ref := &mockRefiner{answer: func(refiner.Request) string { return "bonjour" }}
	o := New(tr, Config{TargetLang: "French", Model: "m", MaxRepairRounds: 1},
		WithJudge(judge, ref), WithMemory(mem))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"bonjour","b":"T:fresh"}` {
		t.Errorf("record = %s", got)
	}
	if len(judge.requests) != 2 {
		t.Fatalf("judge called %d times, want 2 (cached and fresh)", len(judge.requests))
	}
	if p := judge.requests[0].Pairs; len(p) != 1 || p[0].Translation != "bad:hello" {
		t.Errorf("cached pair not reviewed: %+v", p)
	}
	if len(ref.requests) != 1 || ref.requests[0].Previous != "bad:hello" {
		t.Errorf("unexpected repairs: %+v", ref.requests)
	}
	if !reflect.DeepEqual(mem.stored, []string{"hello=bonjour", "fresh=T:fresh"}) {
		t.Errorf("stored = %v", mem.stored)
	}
	if res.Stats.CacheHits != 1 || res.Stats.Rejected != 1 || res.Stats.Repaired != 1 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
}

func TestExecute_GlossaryTermsBypassMemory(t *testing.T) {
	records := parseRecords(t, `{"a":"Open the File","b":"known"}`)
	mem := &mapMemory{entries: map[string]string{
		"Open the File|French|m": "Ouvrez le dossier",
		"known|French|m":         "connu",
	}}
	tr := &mockTranslator{prefix: "T:"}
	o := New(tr, Config{TargetLang: "French", Model: "m", Glossary: map[string]string{"file": "fichier"}},
		WithMemory(mem))

	res, err := o.Execute(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(tr.batches, [][]string{{"Open the File"}}) {
		t.Errorf("batches = %v", tr.batches)
	}
	if got := marshalAll(t, res.Records)[0]; got != `{"a":"T:Open the File","b":"connu"}` {
		t.Errorf("record = %s", got)
	}
	if res.Stats.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", res.Stats.CacheHits)
	}
}
