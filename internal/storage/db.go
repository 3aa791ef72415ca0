package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"hybridserver/internal/config"
	"hybridserver/internal/document"
)

const (
	driverSQLite = "sqlite"
	driverMySQL  = "mysql"
)

// sqlitePragmas run on every fresh SQLite connection. Pragmas are
// per-connection, so they cannot be set once at startup.
var sqlitePragmas = []string{
	"PRAGMA busy_timeout=5000", // Wait up to 5 seconds on lock
	"PRAGMA synchronous=NORMAL",
}

// SQLStore keeps documents in one relational table per type. It holds no
// open connection: every operation opens one, runs a single parameterized
// statement and closes it again.
type SQLStore struct {
	driver string
	dsn    string
}

// NewSQLStore resolves the configured URL into a driver and DSN. Accepted
// forms are mysql://host:port/db, jdbc:mysql://..., sqlite:<path>,
// jdbc:sqlite:<path> and file:<path>.
func NewSQLStore(cfg config.DBConfig) (*SQLStore, error) {
	driver, dsn, err := parseDBURL(cfg.URL, cfg.User, cfg.Password)
	if err != nil {
		return nil, err
	}
	return &SQLStore{driver: driver, dsn: dsn}, nil
}

// Driver returns the database/sql driver name in use.
func (s *SQLStore) Driver() string { return s.driver }

// Gateway returns the table gateway for t, or nil for an unknown type.
func (s *SQLStore) Gateway(t document.Type) Gateway {
	if _, ok := document.Parse(string(t)); !ok {
		return nil
	}
	return &sqlTable{store: s, typ: t}
}

// Close is a no-op; connections never outlive an operation.
func (s *SQLStore) Close() error { return nil }

// withConn opens a fresh database handle with pooling disabled, takes a
// single connection from it and closes both once fn returns.
func (s *SQLStore) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if s.driver == driverSQLite {
		for _, pragma := range sqlitePragmas {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				return fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	}

	return fn(conn)
}

type sqlTable struct {
	store *SQLStore
	typ   document.Type
}

func (t *sqlTable) List(ctx context.Context) (map[string]string, error) {
	query := fmt.Sprintf("SELECT uuid, content FROM %s", t.typ.Table())

	out := make(map[string]string)
	err := t.store.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var id, content string
			if err := rows.Scan(&id, &content); err != nil {
				return err
			}
			out[id] = content
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("list", t.typ, err)
	}
	return out, nil
}

func (t *sqlTable) Get(ctx context.Context, id string) (string, error) {
	return t.selectColumn(ctx, "get", "content", id)
}

func (t *sqlTable) SchemaRef(ctx context.Context, id string) (string, error) {
	if !t.typ.HasSchemaRef() {
		return "", ErrNotFound
	}
	return t.selectColumn(ctx, "schema ref", "xsd", id)
}

func (t *sqlTable) selectColumn(ctx context.Context, op, column, id string) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE uuid = ?", column, t.typ.Table())

	var value string
	err := t.store.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, query, id).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storageErr(op, t.typ, err)
	}
	return value, nil
}

func (t *sqlTable) Create(ctx context.Context, id, content, schemaRef string) error {
	var (
		query string
		args  []any
	)
	if t.typ.HasSchemaRef() {
		query = fmt.Sprintf("INSERT INTO %s (uuid, content, xsd) VALUES (?, ?, ?)", t.typ.Table())
		args = []any{id, content, schemaRef}
	} else {
		query = fmt.Sprintf("INSERT INTO %s (uuid, content) VALUES (?, ?)", t.typ.Table())
		args = []any{id, content}
	}

	err := t.store.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return storageErr("create", t.typ, err)
	}
	return nil
}

func (t *sqlTable) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE uuid = ?", t.typ.Table())

	var affected int64
	err := t.store.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, storageErr("delete", t.typ, err)
	}
	return affected > 0, nil
}

func (t *sqlTable) Exists(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE uuid = ? LIMIT 1", t.typ.Table())

	var one int
	err := t.store.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, query, id).Scan(&one)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("exists", t.typ, err)
	}
	return true, nil
}

// parseDBURL turns a configured database URL into a driver name and DSN.
func parseDBURL(raw, user, password string) (driver, dsn string, err error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "jdbc:")

	switch {
	case strings.HasPrefix(raw, "mysql://"):
		dsn, err := mysqlDSN(raw, user, password)
		if err != nil {
			return "", "", err
		}
		return driverMySQL, dsn, nil
	case strings.HasPrefix(raw, "sqlite:"):
		path := strings.TrimPrefix(raw, "sqlite:")
		path = strings.TrimPrefix(path, "//")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", raw)
		}
		return driverSQLite, path, nil
	case strings.HasPrefix(raw, "file:"):
		return driverSQLite, raw, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", raw)
	}
}

// mysqlDSN converts mysql://host:port/db?param=value into the driver's DSN
// format. Credentials come from the URL when present, else from user and
// password.
func mysqlDSN(raw, user, password string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.User = user
	cfg.Passwd = password
	if u.User != nil {
		cfg.User = u.User.Username()
		if p, ok := u.User.Password(); ok {
			cfg.Passwd = p
		}
	}

	if err := applyJDBCParams(cfg, u.Query()); err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// jdbcOnlyParams are Connector/J options with no driver equivalent. The
// driver would otherwise send them as SET statements and fail to connect.
var jdbcOnlyParams = map[string]bool{
	"allowPublicKeyRetrieval":       true,
	"autoReconnect":                 true,
	"characterEncoding":             true,
	"useJDBCCompliantTimezoneShift": true,
	"useLegacyDatetimeCode":         true,
	"useUnicode":                    true,
	"zeroDateTimeBehavior":          true,
}

// applyJDBCParams maps Connector/J query options onto the driver config.
// useSSL/requireSSL/verifyServerCertificate become tls, serverTimezone
// becomes loc and connectTimeout (ms) becomes timeout. Anything else is
// passed through as a driver or session parameter.
func applyJDBCParams(cfg *mysql.Config, q url.Values) error {
	useSSL := q.Get("useSSL")
	if useSSL == "" {
		useSSL = q.Get("requireSSL")
	}
	switch strings.ToLower(useSSL) {
	case "true":
		cfg.TLSConfig = "true"
		if strings.EqualFold(q.Get("verifyServerCertificate"), "false") {
			cfg.TLSConfig = "skip-verify"
		}
	case "false":
		cfg.TLSConfig = "false"
	}

	if tz := q.Get("serverTimezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid serverTimezone %q: %w", tz, err)
		}
		cfg.Loc = loc
	}

	if ms := q.Get("connectTimeout"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid connectTimeout %q", ms)
		}
		cfg.Timeout = time.Duration(n) * time.Millisecond
	}

	for k := range q {
		switch k {
		case "useSSL", "requireSSL", "verifyServerCertificate", "serverTimezone", "connectTimeout":
			continue
		}
		if jdbcOnlyParams[k] {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[k] = q.Get(k)
	}
	return nil
}
