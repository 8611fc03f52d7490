package bridge

import (
	"strings"
	"unicode/utf8"

	"github.com/tomyedwab/sqlbridge/engine"
)

const utf8MaxLen = utf8.UTFMax

// chunker yields data in chunks of at most size bytes. In text mode a chunk
// never ends inside a UTF-8 sequence: it is shortened to the preceding code
// point boundary and the cut-off bytes lead the next chunk. A chunker is
// single-pass.
type chunker struct {
	data []byte
	size int
	text bool
	off  int
}

func newChunker(data []byte, size int, text bool) *chunker {
	return &chunker{data: data, size: size, text: text}
}

func (c *chunker) next() ([]byte, bool) {
	remaining := len(c.data) - c.off
	if remaining == 0 {
		return nil, false
	}
	n := min(remaining, c.size)
	if c.text && n < remaining {
		cut := n
		for cut > 0 && !utf8.RuneStart(c.data[c.off+cut]) {
			cut--
		}
		// Only malformed input has no boundary in range.
		if cut > 0 {
			n = cut
		}
	}
	chunk := c.data[c.off : c.off+n]
	c.off += n
	return chunk, true
}

// lobStreamer moves large object values through engine Lob handles.
type lobStreamer struct {
	writeChunk int
	readChunk  int
}

func (ls lobStreamer) writeBlob(sess engine.Session, stmt engine.Statement, param int, data []byte) error {
	lob, err := stmt.SetLob(param, int64(len(data)))
	if err != nil {
		return engineError(KindEngine, "SetLob", sess, err)
	}
	c := newChunker(data, ls.writeChunk, false)
	for chunk, ok := c.next(); ok; chunk, ok = c.next() {
		if err := lob.WriteBlob(chunk); err != nil {
			return engineError(KindEngine, "WriteBlob", sess, err)
		}
	}
	return nil
}

// writeNclob declares the value's size in characters and streams its UTF-8
// bytes.
func (ls lobStreamer) writeNclob(sess engine.Session, stmt engine.Statement, param int, text string) error {
	lob, err := stmt.SetLob(param, int64(utf8.RuneCountInString(text)))
	if err != nil {
		return engineError(KindEngine, "SetLob", sess, err)
	}
	c := newChunker([]byte(text), ls.writeChunk, true)
	for chunk, ok := c.next(); ok; chunk, ok = c.next() {
		if err := lob.WriteNclob(chunk); err != nil {
			return engineError(KindEngine, "WriteNclob", sess, err)
		}
	}
	return nil
}

func (ls lobStreamer) readBlob(sess engine.Session, stmt engine.Statement, col int) ([]byte, error) {
	lob, size, err := stmt.GetLob(col)
	if err != nil {
		return nil, engineError(KindEngine, "GetLob", sess, err)
	}
	buf := make([]byte, size)
	for off := int64(0); off < size; {
		n := min(size-off, int64(ls.readChunk))
		if err := lob.ReadBlob(buf[off : off+n]); err != nil {
			return nil, engineError(KindEngine, "ReadBlob", sess, err)
		}
		off += n
	}
	return buf, nil
}

// readNclob reads until the engine reports completion. Each read fills at most
// readChunk bytes plus the NUL terminator.
func (ls lobStreamer) readNclob(sess engine.Session, stmt engine.Statement, col int) (string, error) {
	lob, chars, err := stmt.GetLob(col)
	if err != nil {
		return "", engineError(KindEngine, "GetLob", sess, err)
	}
	if chars == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.Grow(int(chars))
	buf := make([]byte, ls.readChunk+1)
	for {
		n, more, err := lob.ReadNclob(buf)
		if err != nil {
			return "", engineError(KindEngine, "ReadNclob", sess, err)
		}
		sb.Write(buf[:n])
		if !more {
			break
		}
	}
	return sb.String(), nil
}
