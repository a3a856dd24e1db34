package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// TableName is the registry table.
const TableName = "admin_registry"

// RecordModel is the bun model of a registry row.
type RecordModel struct {
	bun.BaseModel `bun:"table:admin_registry,alias:ar"`

	UID       string    `bun:"uid,pk"`
	Role      string    `bun:"role,notnull"`
	Note      string    `bun:"note"`
	GrantedAt time.Time `bun:"granted_at,notnull,default:current_timestamp"`
}

func (m *RecordModel) toRecord() Record {
	return Record{UID: m.UID, Role: m.Role, Note: m.Note, GrantedAt: m.GrantedAt}
}

// SQL is a Store backed by a bun database.
type SQL struct {
	db  *bun.DB
	now func() time.Time
}

var _ Store = (*SQL)(nil)

// NewSQL returns a SQL store using db.
func NewSQL(db *bun.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

// Open connects to driver (sqlite, postgres or mysql) and wraps the
// connection with the matching bun dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("registry: open sqlite: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case "postgres", "postgresql", "pgx":
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("registry: parse postgres dsn: %w", err)
		}
		return bun.NewDB(stdlib.OpenDB(*cfg), pgdialect.New()), nil
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("registry: parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("registry: open mysql: %w", err)
		}
		return bun.NewDB(sql.OpenDB(connector), mysqldialect.New()), nil
	default:
		return nil, fmt.Errorf("registry: unsupported driver %q", driver)
	}
}

// CreateTable creates the registry table if it does not exist.
func (s *SQL) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*RecordModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// GetRecord reads one row by uid. A missing row is nil, nil.
func (s *SQL) GetRecord(ctx context.Context, uid string) (*auth.RegistryEntry, error) {
	var model RecordModel
	err := s.db.NewSelect().
		Model(&model).
		Where("uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Classify(err)
	}
	return &auth.RegistryEntry{UID: model.UID, Role: model.Role}, nil
}

func (s *SQL) Grant(ctx context.Context, uid string, role auth.AdminRole, note string) error {
	uid, err := validateGrant(uid, role)
	if err != nil {
		return err
	}

	model := &RecordModel{UID: uid, Role: role.String(), Note: note, GrantedAt: s.now().UTC()}
	q := s.db.NewInsert().Model(model)
	if s.db.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("role = VALUES(role)").
			Set("note = VALUES(note)").
			Set("granted_at = VALUES(granted_at)")
	} else {
		q = q.On("CONFLICT (uid) DO UPDATE").
			Set("role = EXCLUDED.role").
			Set("note = EXCLUDED.note").
			Set("granted_at = EXCLUDED.granted_at")
	}

	_, err = q.Exec(ctx)
	return Classify(err)
}

func (s *SQL) Revoke(ctx context.Context, uid string) error {
	_, err := s.db.NewDelete().
		Model((*RecordModel)(nil)).
		Where("uid = ?", uid).
		Exec(ctx)
	return Classify(err)
}

// List returns every row ordered by uid.
func (s *SQL) List(ctx context.Context) ([]Record, error) {
	var models []RecordModel
	err := s.db.NewSelect().
		Model(&models).
		Order("uid ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, Classify(err)
	}

	out := make([]Record, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, nil
}

var pgAccessDenied = map[string]bool{
	"42501": true, // insufficient_privilege
	"28000": true, // invalid_authorization_specification
	"28P01": true, // invalid_password
}

var mysqlAccessDenied = map[uint16]bool{
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1142: true, // ER_TABLEACCESS_DENIED_ERROR
	1143: true, // ER_COLUMNACCESS_DENIED_ERROR
}

// IsAccessDenied reports whether err is the database refusing the read.
func IsAccessDenied(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgAccessDenied[pgErr.Code]
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlAccessDenied[myErr.Number]
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_auth") || strings.Contains(msg, "not authorized")
}

// Classify wraps access denial errors as auth.ErrRegistryAccessDenied and
// returns every other error unchanged.
func Classify(err error) error {
	if err == nil || !IsAccessDenied(err) {
		return err
	}
	return auth.NewRegistryAccessDenied(err, map[string]any{"table": TableName})
}
