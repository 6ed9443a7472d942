package ui

import (
	"bytes"
	"testing"
)

func TestPaneWriterSplitsLines(t *testing.T) {
	var got []string
	w := newPaneWriter(func(line string) { got = append(got, line) })
	w.Write([]byte("Engine: one\r\nEngine: tw"))
	w.Write([]byte("o\n"))
	if len(got) != 2 || got[0] != "Engine: one" || got[1] != "Engine: two" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestPaneWriterBounds(t *testing.T) {
	writer := newPaneWriter(func(string) {})
	input := bytes.Repeat([]byte("a"), paneWriterMaxBytes*2)
	n, err := writer.Write(input)
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if n != len(input) {
		t.Fatalf("expected write %d bytes, got %d", len(input), n)
	}
	if len(writer.buf) != paneWriterMaxBytes {
		t.Fatalf("expected buffer size %d, got %d", paneWriterMaxBytes, len(writer.buf))
	}
	if writer.droppedBytes == 0 {
		t.Fatalf("expected dropped bytes to be tracked")
	}
}
