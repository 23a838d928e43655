// 包 store 提供按源隔离的持久化键值实现（SQLite/Redis/内存），
// 供刷新协调器保存跨重新加载的时间戳。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// 说明：modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空所有源的键值（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage`); err != nil {
		return fmt.Errorf("delete local_storage: %w", err)
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS local_storage (
            origin TEXT NOT NULL,
            key TEXT NOT NULL,
            value TEXT NOT NULL,
            updated_at TIMESTAMP,
            PRIMARY KEY (origin, key)
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, origin, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE origin = ? AND key = ?`, origin, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", origin, key, err)
	}
	return v, true, nil
}

// Set 插入或覆盖（origin, key 唯一约束）。
func (s *SQLite) Set(ctx context.Context, origin, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO local_storage(origin, key, value, updated_at)
        VALUES(?,?,?,?)
        ON CONFLICT(origin, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		origin, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", origin, key, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, origin, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE origin = ? AND key = ?`, origin, key); err != nil {
		return fmt.Errorf("remove %s/%s: %w", origin, key, err)
	}
	return nil
}

// Entries 返回某个源下的全部键值，按键排序。
func (s *SQLite) Entries(ctx context.Context, origin string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM local_storage WHERE origin = ? ORDER BY key`, origin)
	if err != nil {
		return nil, fmt.Errorf("query local_storage: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan local_storage: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate local_storage: %w", err)
	}
	return out, nil
}
