package bridge

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tomyedwab/sqlbridge/engine"
)

const (
	DefaultLobWriteChunk = 2 << 20
	DefaultLobReadChunk  = 64 << 10
	DefaultStringBuffer  = 256
)

// Config holds the transfer sizes used by a session.
type Config struct {
	// LobWriteChunk is the largest chunk written to a Lob in one call.
	LobWriteChunk int
	// LobReadChunk is the buffer size used for each Lob read.
	LobReadChunk int
	// StringBuffer is the size of the first buffer tried for string columns.
	// Longer values are re-read with an exactly sized buffer.
	StringBuffer int

	Logger log.FieldLogger
}

// DefaultConfig returns the standard transfer sizes and the logrus standard
// logger.
func DefaultConfig() Config {
	return Config{
		LobWriteChunk: DefaultLobWriteChunk,
		LobReadChunk:  DefaultLobReadChunk,
		StringBuffer:  DefaultStringBuffer,
		Logger:        log.StandardLogger(),
	}
}

// Validate checks the sizes against the engine limits.
func (c Config) Validate() error {
	if c.LobWriteChunk < utf8MaxLen || c.LobWriteChunk > engine.MaxLobChunk {
		return fmt.Errorf("bridge: LobWriteChunk %d outside [%d, %d]", c.LobWriteChunk, utf8MaxLen, engine.MaxLobChunk)
	}
	if c.LobReadChunk <= utf8MaxLen || c.LobReadChunk > engine.MaxLobChunk {
		return fmt.Errorf("bridge: LobReadChunk %d outside [%d, %d]", c.LobReadChunk, utf8MaxLen+1, engine.MaxLobChunk)
	}
	if c.StringBuffer < 2 {
		return fmt.Errorf("bridge: StringBuffer %d must be at least 2", c.StringBuffer)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LobWriteChunk == 0 {
		c.LobWriteChunk = d.LobWriteChunk
	}
	if c.LobReadChunk == 0 {
		c.LobReadChunk = d.LobReadChunk
	}
	if c.StringBuffer == 0 {
		c.StringBuffer = d.StringBuffer
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}
