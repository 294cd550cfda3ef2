package worker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ppiankov/wikiclaim/internal/model"
)

// maxLineBytes bounds a single JSON-lines record
const maxLineBytes = 4 << 20

// Assessor assesses one business input
type Assessor interface {
	Assess(input model.Input) *model.Report
}

// InputLine is one record of a JSON-lines file
type InputLine struct {
	Line  int
	Input *model.Input
	Err   error // Decode failure for this line
}

// AssessJob assesses one input line
type AssessJob struct {
	Index    int
	Line     InputLine
	Assessor Assessor
}

// Execute runs the assessment unless the line failed to decode or the batch was cancelled
func (j *AssessJob) Execute(ctx context.Context) Result {
	result := &AssessResult{Index: j.Index, Line: j.Line.Line}
	if j.Line.Input != nil {
		result.BusinessID = j.Line.Input.Business.ID
	}

	switch {
	case j.Line.Err != nil:
		result.Error = j.Line.Err
	case ctx.Err() != nil:
		result.Error = ctx.Err()
	default:
		result.Report = j.Assessor.Assess(*j.Line.Input)
	}
	return result
}

// AssessResult is the outcome of one assessment job
type AssessResult struct {
	Index      int
	Line       int
	BusinessID string
	Report     *model.Report
	Error      error
}

// GetError returns the error from the assessment
func (r *AssessResult) GetError() error {
	return r.Error
}

// ProgressFunc is told how many of total lines have been assessed
type ProgressFunc func(done, total int, result *AssessResult)

// BatchProcessor assesses many inputs concurrently
type BatchProcessor struct {
	assessor    Assessor
	concurrency int
	progress    ProgressFunc
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(assessor Assessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		assessor:    assessor,
		concurrency: concurrency,
	}
}

// OnProgress sets a callback run after each assessment. It is never called concurrently.
func (b *BatchProcessor) OnProgress(fn ProgressFunc) {
	b.progress = fn
}

// ProcessInputs assesses the lines concurrently. Results keep input order.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, lines []InputLine) []*AssessResult {
	if len(lines) == 0 {
		return []*AssessResult{}
	}

	jobs := make([]Job, len(lines))
	for i, line := range lines {
		jobs[i] = &AssessJob{Index: i, Line: line, Assessor: b.assessor}
	}

	var onResult func(Result)
	if b.progress != nil {
		done := 0
		onResult = func(r Result) {
			done++
			b.progress(done, len(lines), r.(*AssessResult))
		}
	}

	results := NewPool(ctx, b.concurrency).Run(jobs, onResult)

	assessed := make([]*AssessResult, 0, len(lines))
	done := make(map[int]bool, len(results))
	for _, r := range results {
		ar := r.(*AssessResult)
		done[ar.Index] = true
		assessed = append(assessed, ar)
	}

	// Jobs dropped by cancellation still get a result
	for i, line := range lines {
		if !done[i] {
			assessed = append(assessed, &AssessResult{Index: i, Line: line.Line, Error: fmt.Errorf("line %d: %w", line.Line, context.Canceled)})
		}
	}

	sort.Slice(assessed, func(i, j int) bool { return assessed[i].Index < assessed[j].Index })
	return assessed
}

// ProcessFile reads a JSON-lines file and assesses it
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AssessResult, error) {
	lines, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, lines), nil
}

// ReadInputsFromFile reads one JSON input per line. Blank lines and lines
// starting with # are skipped. A record whose business ID was already seen
// is dropped. Lines that fail to decode are returned with Err set.
func ReadInputsFromFile(filePath string) ([]InputLine, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []InputLine
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())

		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		input, err := model.DecodeInput(bytes.NewReader(raw))
		if err != nil {
			lines = append(lines, InputLine{Line: lineNo, Err: fmt.Errorf("line %d: %w", lineNo, err)})
			continue
		}

		if seen[input.Business.ID] {
			continue
		}
		seen[input.Business.ID] = true
		lines = append(lines, InputLine{Line: lineNo, Input: input})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}
