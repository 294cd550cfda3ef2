package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/wikiclaim/internal/model"
)

// mockAssessor implements Assessor
type mockAssessor struct {
	calls int32
	delay time.Duration
}

func (m *mockAssessor) Assess(input model.Input) *model.Report {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(m.delay) // Simulate work
	return &model.Report{
		BusinessID: input.Business.ID,
		Subject:    input.Business.Name,
		SourceURL:  input.Business.URL,
	}
}

func inputLine(n int, id, name string) InputLine {
	return InputLine{
		Line: n,
		Input: &model.Input{Business: model.BusinessRecord{
			ID:   id,
			Name: name,
			URL:  "https://" + id + ".example",
		}},
	}
}

func TestBatchProcessor_ProcessInputs(t *testing.T) {
	assessor := &mockAssessor{delay: 5 * time.Millisecond}
	processor := NewBatchProcessor(assessor, 3)

	var lines []InputLine
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		lines = append(lines, inputLine(i+1, id, strings.ToUpper(id)))
	}

	results := processor.ProcessInputs(context.Background(), lines)

	if len(results) != len(lines) {
		t.Fatalf("expected %d results, got %d", len(lines), len(results))
	}

	var got []string
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.BusinessID, res.Error)
			continue
		}
		if res.Index != i {
			t.Errorf("result %d has index %d", i, res.Index)
		}
		if res.Report == nil || res.Report.BusinessID != res.BusinessID {
			t.Errorf("report does not match business %s", res.BusinessID)
		}
		got = append(got, res.BusinessID)
	}

	want := []string{"a", "b", "c", "d", "e", "f", "g"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result order mismatch (-want +got):\n%s", diff)
	}
	if assessor.calls != int32(len(lines)) {
		t.Errorf("expected %d assessments, got %d", len(lines), assessor.calls)
	}
}

func TestBatchProcessor_ProcessInputs_DecodeError(t *testing.T) {
	assessor := &mockAssessor{}
	processor := NewBatchProcessor(assessor, 2)

	lines := []InputLine{
		inputLine(1, "a", "A"),
		{Line: 2, Err: errors.New("line 2: decode input: unexpected EOF")},
	}

	results := processor.ProcessInputs(context.Background(), lines)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Error != nil || results[0].Report == nil {
		t.Errorf("expected first line to be assessed, got %+v", results[0])
	}
	if results[1].Error == nil {
		t.Error("expected decode error on second line")
	}
	if results[1].Report != nil {
		t.Error("expected nil report on error")
	}
	if assessor.calls != 1 {
		t.Errorf("expected 1 assessment, got %d", assessor.calls)
	}
}

func TestBatchProcessor_ProcessInputs_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&mockAssessor{}, 2)
	lines := []InputLine{inputLine(1, "a", "A"), inputLine(2, "b", "B"), inputLine(3, "c", "C")}

	results := processor.ProcessInputs(ctx, lines)
	if len(results) != len(lines) {
		t.Fatalf("expected %d results, got %d", len(lines), len(results))
	}
	for i, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("result %d: expected context.Canceled, got %v", i, res.Error)
		}
		if res.Line != lines[i].Line {
			t.Errorf("result %d: expected line %d, got %d", i, lines[i].Line, res.Line)
		}
	}
}

func TestBatchProcessor_OnProgress(t *testing.T) {
	processor := NewBatchProcessor(&mockAssessor{}, 2)

	var counts []int
	processor.OnProgress(func(done, total int, r *AssessResult) {
		if total != 4 {
			t.Errorf("expected total 4, got %d", total)
		}
		if r == nil {
			t.Error("progress called with nil result")
		}
		counts = append(counts, done)
	})

	lines := []InputLine{
		inputLine(1, "a", "A"),
		inputLine(2, "b", "B"),
		{Line: 3, Err: errors.New("line 3: bad json")},
		inputLine(4, "c", "C"),
	}
	processor.ProcessInputs(context.Background(), lines)

	if diff := cmp.Diff([]int{1, 2, 3, 4}, counts); diff != "" {
		t.Errorf("progress counts mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchProcessor_ProcessInputs_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAssessor{}, 2)

	results := processor.ProcessInputs(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func writeInputs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inputs.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadInputsFromFile(t *testing.T) {
	content := `{"business":{"id":"b1","name":"Acme","url":"https://acme.example"}}
# comment
{"business":{"id":"b2","name":"Bolt"}}

{"business":{"id":"b1","name":"Acme again"}}
{"business":{"name":"no id"}}
{not json
   {"business":{"id":"b3","name":"Crate"}}   `

	lines, err := ReadInputsFromFile(writeInputs(t, content))
	if err != nil {
		t.Fatalf("ReadInputsFromFile failed: %v", err)
	}

	type row struct {
		Line   int
		ID     string
		Failed bool
	}
	var got []row
	for _, l := range lines {
		r := row{Line: l.Line, Failed: l.Err != nil}
		if l.Input != nil {
			r.ID = l.Input.Business.ID
		}
		got = append(got, r)
	}

	want := []row{
		{Line: 1, ID: "b1"},
		{Line: 3, ID: "b2"},
		{Line: 6, Failed: true},
		{Line: 7, Failed: true},
		{Line: 8, ID: "b3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	if lines[0].Input.Business.Name != "Acme" {
		t.Errorf("expected first occurrence to win, got %q", lines[0].Input.Business.Name)
	}
	if !strings.Contains(lines[2].Err.Error(), "line 6") {
		t.Errorf("expected error to name the line, got %v", lines[2].Err)
	}
}

func TestReadInputsFromFile_NonExistent(t *testing.T) {
	_, err := ReadInputsFromFile("non_existent_file.jsonl")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeInputs(t, `{"business":{"id":"b1","name":"Acme"}}
{"business":{"id":"b2","name":"Bolt"}}
`)

	results, err := NewBatchProcessor(&mockAssessor{}, 2).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Report.Subject != "Bolt" {
		t.Errorf("expected Bolt, got %q", results[1].Report.Subject)
	}
}

func TestAssessResult_GetError(t *testing.T) {
	err := errors.New("test error")
	res := &AssessResult{Error: err}
	if res.GetError() != err {
		t.Errorf("expected error %v, got %v", err, res.GetError())
	}
}
