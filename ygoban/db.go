package ygoban

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	DefaultTable = "yugi_cards"

	pingTimeout = 5 * time.Second
)

// ErrMissingKey is wrapped by LoadError for rows without an identifier.
var ErrMissingKey = errors.New("missing identifier")

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ConnectionError is returned when the database cannot be reached.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// LoadError reports a malformed row. Line is set when the row position in
// the source file is known, Row (1-based) otherwise.
type LoadError struct {
	Line int
	Row  int
	Key  string
	Err  error
}

func (e *LoadError) Error() string {
	pos := fmt.Sprintf("row %d", e.Row)
	if e.Line > 0 {
		pos = fmt.Sprintf("line %d", e.Line)
	}
	if e.Key != "" {
		pos += " (" + e.Key + ")"
	}
	return fmt.Sprintf("load %s: %v", pos, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	// Database file, only used by sqlite
	Path string

	Table string
}

func NewDBConfigFromEnv() DBConfig {
	cfg := DBConfig{
		Driver:   os.Getenv("DB_DRIVER"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		Path:     os.Getenv("DB_PATH"),
		Table:    os.Getenv("DB_TABLE"),
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}
	if cfg.Port == "" && cfg.Driver == DriverMySQL {
		cfg.Port = "3306"
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	return cfg
}

// DSN builds the data source name for the configured driver.
func (c DBConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverMySQL:
		if c.Host == "" || c.Name == "" {
			return "", errors.New("DB config incomplete: DB_HOST/DB_NAME must be set")
		}
		port := c.Port
		if port == "" {
			port = "3306"
		}
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, port)
		mc.DBName = c.Name
		return mc.FormatDSN(), nil
	case DriverSQLite:
		if c.Path == "" {
			return "", errors.New("DB config incomplete: DB_PATH must be set")
		}
		return c.Path, nil
	}
	return "", fmt.Errorf("unsupported driver %q", c.Driver)
}

// OpenDB connects to the configured database and verifies it is reachable.
func OpenDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Driver, Err: err}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Driver, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err = db.PingContext(pingCtx)
	if err != nil {
		db.Close()
		return nil, &ConnectionError{Driver: cfg.Driver, Err: err}
	}

	return db, nil
}

// LoadReport counts the outcome of a load.
type LoadReport struct {
	Inserted int
	Skipped  int
}

// Loader inserts rows whose key is not yet present in Table.
// Rows already stored are never updated.
type Loader struct {
	DB          *sql.DB
	Table       string
	LogCallback LogCallbackFunc
}

func NewLoader(db *sql.DB, table string) (*Loader, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRE.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Loader{
		DB:    db,
		Table: table,
	}, nil
}

func (l *Loader) printf(format string, a ...interface{}) {
	if l.LogCallback != nil {
		l.LogCallback("[loader] "+format, a...)
	}
}

// EnsureTable creates the target table when missing. The statement is
// understood by both MySQL and SQLite.
func (l *Loader) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			card_key VARCHAR(191) NOT NULL PRIMARY KEY,
			card_id INTEGER NOT NULL,
			name VARCHAR(255) NOT NULL,
			card_type VARCHAR(64),
			archetype VARCHAR(128),
			description TEXT,
			set_name VARCHAR(255),
			set_code VARCHAR(32),
			rarity VARCHAR(64),
			price DOUBLE,
			image_url VARCHAR(255),
			small_image_url VARCHAR(255)
		)`, l.Table)

	_, err := l.DB.ExecContext(ctx, query)
	return err
}

// Load inserts every row whose key is absent from the table. All rows are
// validated before anything is written.
func (l *Loader) Load(ctx context.Context, rows []Row) (*LoadReport, error) {
	for i, row := range rows {
		if strings.TrimSpace(row.Key) == "" {
			return nil, &LoadError{Row: i + 1, Err: ErrMissingKey}
		}
	}

	var report LoadReport
	for _, row := range rows {
		inserted, err := l.insertIfAbsent(ctx, row)
		if err != nil {
			if l.lostConnection(ctx, err) {
				err = &ConnectionError{Driver: l.driverName(), Err: err}
			}
			return &report, fmt.Errorf("insert %s: %w", row.Key, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Skipped++
		}
	}

	l.printf("%d rows inserted, %d already present", report.Inserted, report.Skipped)
	return &report, nil
}

// lostConnection tells whether err comes from the database going away
// rather than from the row itself.
func (l *Loader) lostConnection(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return true
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return l.DB.PingContext(pingCtx) != nil
}

func (l *Loader) driverName() string {
	switch l.DB.Driver().(type) {
	case *mysql.MySQLDriver:
		return DriverMySQL
	}
	return DriverSQLite
}

func (l *Loader) insertIfAbsent(ctx context.Context, row Row) (bool, error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	// No-op once committed
	defer tx.Rollback()

	var found int
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE card_key = ?`, l.Table),
		row.Key).Scan(&found)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s ( card_key, card_id, name, card_type, archetype, description,
			set_name, set_code, rarity, price, image_url, small_image_url )
		VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? )`, l.Table),
		row.Key, row.CardId, row.Name, row.Type, row.Archetype, row.Description,
		row.SetName, row.SetCode, row.Rarity, row.Price, row.ImageURL, row.SmallImageURL)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// LoadFile reads the rows of a CSV export and loads them into the
// configured database. The connection only lives for the duration of the
// call.
func LoadFile(ctx context.Context, cfg DBConfig, r io.Reader, logCallback LogCallbackFunc) (*LoadReport, error) {
	rows, err := LoadRowsFromCSV(r)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	loader, err := NewLoader(db, cfg.Table)
	if err != nil {
		return nil, err
	}
	loader.LogCallback = logCallback

	err = loader.EnsureTable(ctx)
	if err != nil {
		return nil, err
	}

	return loader.Load(ctx, rows)
}
