package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/tomyedwab/sqlbridge/bridge"
	"github.com/tomyedwab/sqlbridge/driver"
	"github.com/tomyedwab/sqlbridge/engine"
	"github.com/tomyedwab/sqlbridge/host"
)

var tableQueries = map[string]string{
	"sqlite3": "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name",
	"duckdb":  "SELECT table_name AS name FROM information_schema.tables ORDER BY table_name",
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	driverName := flag.String("driver", "sqlite3", "backing database/sql driver (sqlite3 or duckdb)")
	dsn := flag.String("db", ":memory:", "backing database DSN")
	target := flag.String("target", "main", "database name sessions connect to")
	user := flag.String("user", envOr("SQLBRIDGE_USER", "sysadm"), "user name")
	password := flag.String("password", os.Getenv("SQLBRIDGE_PASSWORD"), "password or session token")
	secretPath := flag.String("token-secret", os.Getenv("SQLBRIDGE_TOKEN_SECRET"), "token signing key file; when set, only session tokens are accepted")
	mintToken := flag.Bool("token", false, "print a session token for -user and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens minted with -token")
	schema := flag.Bool("schema", false, "list the tables of the target database and exit")
	inTx := flag.Bool("tx", false, "run all statements in one transaction")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	opts := host.Options{Database: *target}
	if *secretPath != "" {
		secret, err := host.LoadTokenSecret(*secretPath)
		if err != nil {
			log.Fatalf("Failed to load token secret: %v", err)
		}
		opts.TokenSecret = secret
		opts.Users = map[string]string{}
	}

	if *mintToken {
		if opts.TokenSecret == nil {
			log.Fatal("-token requires -token-secret")
		}
		token, err := host.IssueToken(opts.TokenSecret, *user, *target, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	eng, err := host.Open(*driverName, *dsn, opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer eng.Close()

	if *schema {
		if err := listTables(eng, *driverName, driver.DSN{User: *user, Credential: *password, Target: *target}); err != nil {
			log.Fatalf("Failed to list tables: %v", err)
		}
		return
	}

	statements := flag.Args()
	if len(statements) == 0 {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("Failed to read statements: %v", err)
		}
		statements = splitStatements(string(input))
	}

	if err := run(eng, *target, *user, *password, statements, *inTx, *pretty); err != nil {
		log.Fatal(err)
	}
}

func run(eng engine.Engine, target, user, password string, statements []string, inTx, pretty bool) (err error) {
	sess, err := bridge.New(eng, bridge.DefaultConfig())
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Connect(target, user, password); err != nil {
		return err
	}

	if inTx {
		if err := sess.BeginTransaction(engine.TransactionReadWrite); err != nil {
			return err
		}
		defer func() {
			if err != nil {
				if rerr := sess.Rollback(); rerr != nil {
					log.WithError(rerr).Warn("Rollback failed")
				}
				return
			}
			err = sess.Commit()
		}()
	}

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		log.WithField("sql", stmt).Debug("Executing statement")
		res, err := sess.Execute(stmt)
		if err != nil {
			return err
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

// listTables goes through the sqlbridge database/sql driver, so the listing
// uses the same login and type mapping as every other session.
func listTables(eng engine.Engine, driverName string, dsn driver.DSN) error {
	query, ok := tableQueries[driverName]
	if !ok {
		return fmt.Errorf("no table listing for driver %q", driverName)
	}
	c, err := driver.NewConnector(eng, dsn.String(), bridge.DefaultConfig())
	if err != nil {
		return err
	}
	db := sqlx.NewDb(sql.OpenDB(c), "sqlbridge")
	defer db.Close()

	var tables []string
	if err := db.Select(&tables, query); err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

// splitStatements splits input at semicolons outside quoted text.
func splitStatements(input string) []string {
	var (
		out   []string
		start int
		quote rune
	)
	for i, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			out = append(out, input[start:i])
			start = i + 1
		}
	}
	return append(out, input[start:])
}
