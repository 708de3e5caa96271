package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"tickscope/internal/model"
)

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 10 * 1024 * 1024
)

// EventReader reads event records from a JSONL file, one JSON object per line.
type EventReader struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// NewEventReader opens the JSONL file at path for reading.
func NewEventReader(path string) (*EventReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file %s: %w", path, err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)

	return &EventReader{
		file:    file,
		scanner: scanner,
	}, nil
}

// Next returns the next event record. Blank lines are skipped. Returns
// (nil, nil) at end of file.
func (r *EventReader) Next(ctx context.Context) (*model.EventRecord, error) {
	for r.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}

		var record model.EventRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("parse event at line %d: %w", r.line, err)
		}

		return &record, nil
	}

	if err := r.scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	return nil, nil
}

// Close closes the underlying file.
func (r *EventReader) Close() error {
	return r.file.Close()
}
