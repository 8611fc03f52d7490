package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/tomyedwab/sqlbridge/bridge"
	"github.com/tomyedwab/sqlbridge/engine"
)

const driverName = "sqlbridge"

var (
	engineMu      sync.RWMutex
	defaultEngine engine.Engine
	defaultConfig bridge.Config
)

// SetEngine sets the engine and session config used by connections opened
// through sql.Open("sqlbridge", dsn). It must be called before sql.Open.
func SetEngine(eng engine.Engine, cfg bridge.Config) {
	engineMu.Lock()
	defer engineMu.Unlock()
	defaultEngine = eng
	defaultConfig = cfg
}

func init() {
	sql.Register(driverName, &Driver{})
}

// DSN is a parsed data source name of the form user:credential@target.
type DSN struct {
	User       string
	Credential string
	Target     string
}

// ParseDSN splits name at its last '@' and the user part at its first ':'.
func ParseDSN(name string) (DSN, error) {
	at := strings.LastIndex(name, "@")
	if at < 0 {
		return DSN{}, fmt.Errorf("sqlbridge: invalid DSN %q: missing @target", name)
	}
	d := DSN{Target: name[at+1:]}
	if d.Target == "" {
		return DSN{}, fmt.Errorf("sqlbridge: invalid DSN %q: empty target", name)
	}
	d.User, d.Credential, _ = strings.Cut(name[:at], ":")
	if d.User == "" {
		return DSN{}, fmt.Errorf("sqlbridge: invalid DSN %q: empty user", name)
	}
	return d, nil
}

func (d DSN) String() string {
	if d.Credential == "" {
		return d.User + "@" + d.Target
	}
	return d.User + ":" + d.Credential + "@" + d.Target
}

// Driver is the database/sql driver registered as "sqlbridge".
type Driver struct{}

// Open returns a new connection using the engine set with SetEngine.
func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector parses name once for every connection of a sql.DB.
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	engineMu.RLock()
	eng, cfg := defaultEngine, defaultConfig
	engineMu.RUnlock()
	if eng == nil {
		return nil, fmt.Errorf("sqlbridge: engine is not set")
	}
	return NewConnector(eng, name, cfg)
}

// Connector opens bridge sessions against one engine. Use it with
// sql.OpenDB when more than one engine is in play.
type Connector struct {
	eng engine.Engine
	dsn DSN
	cfg bridge.Config
}

// NewConnector parses dsn and checks cfg. Zero fields of cfg take the bridge
// defaults.
func NewConnector(eng engine.Engine, dsn string, cfg bridge.Config) (*Connector, error) {
	d, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &Connector{eng: eng, dsn: d, cfg: cfg}, nil
}

// Connect opens and connects a new bridge session.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := bridge.New(c.eng, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("sqlbridge: %w", err)
	}
	if err := sess.Connect(c.dsn.Target, c.dsn.User, c.dsn.Credential); err != nil {
		return nil, err
	}
	return &Conn{sess: sess}, nil
}

func (c *Connector) Driver() driver.Driver { return &Driver{} }
