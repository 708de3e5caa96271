package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeEventsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestEventReaderNext(t *testing.T) {
	path := writeEventsFile(t, `{"tx_hash":"0x1","event_name":"Mint","timestamp":100,"address":"0xpool"}

{"tx_hash":"0x2","event_name":"Swap","timestamp":200,"address":"0xpool"}
`)

	reader, err := NewEventReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	ctx := context.Background()

	first, err := reader.Next(ctx)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if first == nil || first.EventName != "Mint" || first.Timestamp != 100 {
		t.Fatalf("first record = %+v", first)
	}

	second, err := reader.Next(ctx)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if second == nil || second.EventName != "Swap" {
		t.Fatalf("second record = %+v", second)
	}

	done, err := reader.Next(ctx)
	if err != nil {
		t.Fatalf("eof: %v", err)
	}
	if done != nil {
		t.Fatalf("expected nil at end of file, got %+v", done)
	}
}

func TestEventReaderBadLine(t *testing.T) {
	path := writeEventsFile(t, "{not json}\n")

	reader, err := NewEventReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEventReaderMissingFile(t *testing.T) {
	if _, err := NewEventReader(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatalf("expected open error")
	}
}
