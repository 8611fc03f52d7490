package host

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/tomyedwab/sqlbridge/engine"
)

// Lob implements engine.Lob over an in-memory buffer. Written objects are
// staged until the statement runs; read objects hold the fetched value.
type Lob struct {
	sess *Session
	text bool
	size int64
	buf  bytes.Buffer
	pos  int
}

func (l *Lob) write(op string, p []byte) error {
	if len(p) > engine.MaxLobChunk {
		return l.sess.fail(engine.CodeLobChunkTooLarge, op, "chunk of %d bytes exceeds %d", len(p), engine.MaxLobChunk)
	}
	l.buf.Write(p)
	return nil
}

func (l *Lob) WriteBlob(p []byte) error {
	if l.text {
		return l.sess.fail(engine.CodeTypeMismatch, "WriteBlob", "character large object")
	}
	if int64(l.buf.Len()+len(p)) > l.size {
		return l.sess.fail(engine.CodeLobSizeMismatch, "WriteBlob", "write exceeds declared size %d", l.size)
	}
	return l.write("WriteBlob", p)
}

// WriteNclob accepts only chunks made of whole UTF-8 sequences.
func (l *Lob) WriteNclob(p []byte) error {
	if !l.text {
		return l.sess.fail(engine.CodeTypeMismatch, "WriteNclob", "binary large object")
	}
	if !utf8.Valid(p) {
		return l.sess.fail(engine.CodeTruncatedUTF8, "WriteNclob", "chunk is not complete UTF-8")
	}
	return l.write("WriteNclob", p)
}

// complete checks that everything declared by SetLob was written.
func (l *Lob) complete() error {
	if l.text {
		if n := int64(utf8.RuneCount(l.buf.Bytes())); n != l.size {
			return fmt.Errorf("wrote %d characters, declared %d", n, l.size)
		}
		return nil
	}
	if n := int64(l.buf.Len()); n != l.size {
		return fmt.Errorf("wrote %d bytes, declared %d", n, l.size)
	}
	return nil
}

// ReadBlob fills p with the next len(p) bytes.
func (l *Lob) ReadBlob(p []byte) error {
	if len(p) > engine.MaxLobChunk {
		return l.sess.fail(engine.CodeLobChunkTooLarge, "ReadBlob", "chunk of %d bytes exceeds %d", len(p), engine.MaxLobChunk)
	}
	data := l.buf.Bytes()
	if l.pos+len(p) > len(data) {
		return l.sess.fail(engine.CodeLobSizeMismatch, "ReadBlob", "read past end of object")
	}
	copy(p, data[l.pos:])
	l.pos += len(p)
	return nil
}

// ReadNclob copies whole characters into p, leaving room for a NUL
// terminator, and reports whether more remain.
func (l *Lob) ReadNclob(p []byte) (int, bool, error) {
	if len(p) < 2 {
		return 0, false, l.sess.fail(engine.CodeIndexOutOfRange, "ReadNclob", "buffer of %d bytes is too small", len(p))
	}
	if len(p) > engine.MaxLobChunk+1 {
		return 0, false, l.sess.fail(engine.CodeLobChunkTooLarge, "ReadNclob", "chunk of %d bytes exceeds %d", len(p)-1, engine.MaxLobChunk)
	}
	data := l.buf.Bytes()[l.pos:]
	n := len(p) - 1
	if n >= len(data) {
		n = len(data)
	} else {
		for n > 0 && !utf8.RuneStart(data[n]) {
			n--
		}
		if n == 0 {
			return 0, false, l.sess.fail(engine.CodeIndexOutOfRange, "ReadNclob", "buffer of %d bytes cannot hold one character", len(p))
		}
	}
	copy(p, data[:n])
	p[n] = 0
	l.pos += n
	return n, l.pos < l.buf.Len(), nil
}
