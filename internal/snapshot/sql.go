package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"StockKeeper/internal/inventory"
)

const (
	pgUniqueCode    = "23505"
	mysqlDupEntryNo = 1062
)

var ErrDuplicateItem = errors.New("duplicate item in snapshot")

type Dialect struct {
	Name        string
	Placeholder func(n int) string
	CreateTable string
}

var (
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		CreateTable: `
			CREATE TABLE IF NOT EXISTS inventory_items (
				position INT    NOT NULL,
				item     TEXT   PRIMARY KEY,
				qty      BIGINT NOT NULL
			)`,
	}
	// MySQL compares item names byte for byte; the default utf8mb4
	// collation would fold "apple" and "Apple" into one key.
	MySQL = Dialect{
		Name:        "mysql",
		Placeholder: func(int) string { return "?" },
		CreateTable: `
			CREATE TABLE IF NOT EXISTS inventory_items (
				position INT    NOT NULL PRIMARY KEY,
				item     TEXT   CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
				qty      BIGINT NOT NULL
			)`,
	}
)

type SQL struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQL(db *sql.DB, d Dialect) *SQL {
	return &SQL{db: db, dialect: d}
}

func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return openSQL(ctx, db, Postgres)
}

// OpenMySQL takes a go-sql-driver DSN such as user:pass@tcp(host:3306)/db.
func OpenMySQL(ctx context.Context, dsn string) (*SQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return openSQL(ctx, sql.OpenDB(conn), MySQL)
}

func openSQL(ctx context.Context, db *sql.DB, d Dialect) (*SQL, error) {
	s := NewSQL(db, d)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, s.dialect.CreateTable); err != nil {
			return fmt.Errorf("create inventory_items: %w", err)
		}
		return nil
	})
}

func (s *SQL) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

// Save replaces every row of inventory_items inside one transaction.
func (s *SQL) Save(ctx context.Context, snap inventory.Snapshot) error {
	if err := distinctItems(snap); err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_items`); err != nil {
			return fmt.Errorf("clear inventory_items: %w", err)
		}

		p := s.dialect.Placeholder
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
			INSERT INTO inventory_items (position, item, qty)
			VALUES (%s, %s, %s)
		`, p(1), p(2), p(3)))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, e := range snap {
			if _, err := stmt.ExecContext(ctx, i, e.Item, e.Qty); err != nil {
				if isDuplicate(err) {
					return fmt.Errorf("%w: %q", ErrDuplicateItem, e.Item)
				}
				return fmt.Errorf("insert %q: %w", e.Item, err)
			}
		}

		return tx.Commit()
	})
}

func (s *SQL) Load(ctx context.Context) (inventory.Snapshot, error) {
	var out inventory.Snapshot

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT item, qty
			FROM inventory_items
			ORDER BY position ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make(inventory.Snapshot, 0, 16)
		for rows.Next() {
			var e inventory.Entry
			if err := rows.Scan(&e.Item, &e.Qty); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load inventory_items: %w", err)
	}
	return out, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) String() string { return s.dialect.Name }

func distinctItems(snap inventory.Snapshot) error {
	seen := make(map[string]struct{}, len(snap))
	for _, e := range snap {
		if _, dup := seen[e.Item]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateItem, e.Item)
		}
		seen[e.Item] = struct{}{}
	}
	return nil
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueCode
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDupEntryNo
}
