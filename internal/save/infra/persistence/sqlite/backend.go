// Package sqlite 把存档对象保存在 SQLite 表 save_objects 中。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"SaveKeeper/internal/save/port"
)

const schema = `CREATE TABLE IF NOT EXISTS save_objects (
	slot       TEXT    NOT NULL,
	name       TEXT    NOT NULL,
	data       BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (slot, name)
)`

type Backend struct {
	sqlDB *sql.DB
}

var _ port.Backend = (*Backend)(nil)

// Open 打开数据库并建表。
func Open(path string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// 单写者；bucket 并发写入在连接池上排队，避免 SQLITE_BUSY。
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Backend{sqlDB: sqlDB}, nil
}

func (b *Backend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := b.sqlDB.QueryRowContext(ctx,
		`SELECT data FROM save_objects WHERE slot = ? AND name = ?`, slot, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", slot, name, port.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("select object: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, slot, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := b.sqlDB.ExecContext(ctx,
		`INSERT INTO save_objects (slot, name, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(slot, name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slot, name, data, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert object: %w", err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, slot, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.sqlDB.ExecContext(ctx,
		`DELETE FROM save_objects WHERE slot = ? AND name = ?`, slot, name); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, slot string) ([]string, error) {
	return b.strings(ctx, `SELECT name FROM save_objects WHERE slot = ? ORDER BY name`, slot)
}

func (b *Backend) Slots(ctx context.Context) ([]string, error) {
	return b.strings(ctx, `SELECT DISTINCT slot FROM save_objects ORDER BY slot`)
}

func (b *Backend) RemoveSlot(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.sqlDB.ExecContext(ctx, `DELETE FROM save_objects WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

func (b *Backend) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := b.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
