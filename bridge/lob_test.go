package bridge

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tomyedwab/sqlbridge/engine"
	"github.com/tomyedwab/sqlbridge/engine/enginetest"
)

func collectChunks(c *chunker) [][]byte {
	var chunks [][]byte
	for chunk, ok := c.next(); ok; chunk, ok = c.next() {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestChunkerBinary(t *testing.T) {
	chunks := collectChunks(newChunker([]byte("0123456789"), 4, false))
	want := []string{"0123", "4567", "89"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if string(c) != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c, want[i])
		}
	}

	if chunks := collectChunks(newChunker(nil, 4, false)); len(chunks) != 0 {
		t.Errorf("empty input produced %d chunks", len(chunks))
	}
}

func TestChunkerTextBoundaries(t *testing.T) {
	text := "aé€😀b😀€éa"
	for size := utf8.UTFMax; size <= 12; size++ {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			var joined bytes.Buffer
			for i, c := range collectChunks(newChunker([]byte(text), size, true)) {
				if len(c) > size {
					t.Errorf("chunk %d has %d bytes, limit %d", i, len(c), size)
				}
				if !utf8.Valid(c) {
					t.Errorf("chunk %d splits a code point: %x", i, c)
				}
				joined.Write(c)
			}
			if joined.String() != text {
				t.Errorf("chunks joined = %q, want %q", joined.String(), text)
			}
		})
	}
}

func TestNclobRoundTrip(t *testing.T) {
	text := strings.Repeat("héllo wörld 😀 ", 20)
	eng := enginetest.NewMockEngine()
	eng.Script("INSERT INTO docs VALUES (?)", &enginetest.Script{
		Params:   []int{engine.NativeNclob},
		Affected: 1,
	})
	eng.Script("SELECT body FROM docs", &enginetest.Script{
		Columns: []enginetest.Column{{Name: "body", Type: engine.NativeNclob}},
		Rows:    [][]interface{}{{text}},
	})
	sess, _ := newTestSession(t, eng, Config{LobWriteChunk: 7, LobReadChunk: 9})

	if _, err := sess.Execute("INSERT INTO docs VALUES (?)", text); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := eng.Bound("INSERT INTO docs VALUES (?)"); len(got) != 1 || got[0] != text {
		t.Errorf("engine received %q, want %q", got, text)
	}
	for _, call := range eng.Calls() {
		var n int
		if _, err := fmt.Sscanf(call, "WriteNclob(%d)", &n); err == nil && n > 7 {
			t.Errorf("%s exceeds the write chunk", call)
		}
	}

	res, err := sess.Execute("SELECT body FROM docs")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := res.Rows[0].At(0).Text(); got != text {
		t.Errorf("read back %q, want %q", got, text)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0x00, 0xff, 0x10}, 11)
	eng := enginetest.NewMockEngine()
	eng.Script("INSERT INTO files VALUES (?)", &enginetest.Script{
		Params:   []int{engine.Blob},
		Affected: 1,
	})
	eng.Script("SELECT data FROM files", &enginetest.Script{
		Columns: []enginetest.Column{{Name: "data", Type: -engine.Blob}},
		Rows:    [][]interface{}{{data}, {[]byte{}}},
	})
	sess, _ := newTestSession(t, eng, Config{LobWriteChunk: 8, LobReadChunk: 10})

	if _, err := sess.Execute("INSERT INTO files VALUES (?)", data); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	got, ok := eng.Bound("INSERT INTO files VALUES (?)")[0].([]byte)
	if !ok || !bytes.Equal(got, data) {
		t.Errorf("engine received %x, want %x", got, data)
	}

	writes := 0
	for _, call := range eng.Calls() {
		if strings.HasPrefix(call, "WriteBlob(") {
			writes++
		}
	}
	if writes != 5 {
		t.Errorf("got %d WriteBlob calls, want 5", writes)
	}

	res, err := sess.Execute("SELECT data FROM files")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := res.Rows[0].At(0).Bytes(); !bytes.Equal(got, data) {
		t.Errorf("read back %x, want %x", got, data)
	}
	if got := res.Rows[1].At(0); got.Kind() != KindBytes || len(got.Bytes()) != 0 {
		t.Errorf("empty blob read back as %v", got)
	}
}

func TestEmptyNclob(t *testing.T) {
	eng := enginetest.NewMockEngine()
	eng.Script("SELECT body FROM docs", &enginetest.Script{
		Columns: []enginetest.Column{{Name: "body", Type: engine.Nclob}},
		Rows:    [][]interface{}{{""}},
	})
	sess, _ := newTestSession(t, eng, Config{})

	res, err := sess.Execute("SELECT body FROM docs")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := res.Rows[0].At(0); got.Kind() != KindText || got.Text() != "" {
		t.Errorf("empty nclob read back as %v", got)
	}
	for _, call := range eng.Calls() {
		if strings.HasPrefix(call, "ReadNclob") {
			t.Errorf("unexpected %s for an empty value", call)
		}
	}
}
