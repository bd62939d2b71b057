package feed

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"monte/internal/logger"
	"monte/internal/market"

	_ "modernc.org/sqlite"
)

// Cache 把已拉取的原始行落到本地 sqlite，按 symbol@resolution 一库一文件。
// coverage 表记录已经完整覆盖过的拉取区间，命中才允许离线回放。
type Cache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCache(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache 目录不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Cache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *Cache) db(symbol string, res market.Resolution) (*sql.DB, error) {
	key := strings.ToUpper(symbol) + "@" + strings.ToLower(res.String())
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[key]; ok && db != nil {
		return db, nil
	}
	path := filepath.Join(c.root, strings.ToUpper(symbol), strings.ToLower(res.String())+".db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	c.dbs[key] = db
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			ts INTEGER PRIMARY KEY,
			t  TEXT NOT NULL,
			o  REAL NOT NULL,
			h  REAL NOT NULL,
			l  REAL NOT NULL,
			c  REAL NOT NULL,
			v  REAL NOT NULL,
			n  INTEGER DEFAULT 0,
			vw REAL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS coverage (
			start_ms INTEGER NOT NULL,
			end_ms   INTEGER NOT NULL,
			PRIMARY KEY (start_ms, end_ms)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// covered 判断 [start,end] 是否被某个已记录的拉取区间完整包含。
func (c *Cache) covered(ctx context.Context, db *sql.DB, start, end int64) (bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM coverage WHERE start_ms <= ? AND end_ms >= ?`, start, end)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Cache) insert(ctx context.Context, db *sql.DB, rows []RawBar, start, end int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (ts, t, o, h, l, c, v, n, vw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts) DO UPDATE SET
		    t=excluded.t, o=excluded.o, h=excluded.h, l=excluded.l,
		    c=excluded.c, v=excluded.v, n=excluded.n, vw=excluded.vw`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339, r.T)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("缓存写入失败，时间戳无法解析 %q: %w", r.T, err)
		}
		if _, err := stmt.ExecContext(ctx, ts.UnixMilli(), r.T, r.O, r.H, r.L, r.C, r.V, r.N, r.VW); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO coverage (start_ms, end_ms) VALUES (?, ?)
		 ON CONFLICT(start_ms, end_ms) DO NOTHING`, start, end); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (c *Cache) load(ctx context.Context, db *sql.DB, start, end int64) ([]RawBar, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t, o, h, l, c, v, n, vw FROM bars
		WHERE ts BETWEEN ? AND ? ORDER BY ts ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawBar
	for rows.Next() {
		var r RawBar
		if err := rows.Scan(&r.T, &r.O, &r.H, &r.L, &r.C, &r.V, &r.N, &r.VW); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CachedSource 为任意 BarSource 增加 sqlite 读穿/写穿缓存。
type CachedSource struct {
	inner BarSource
	cache *Cache
}

func NewCachedSource(inner BarSource, cache *Cache) *CachedSource {
	return &CachedSource{inner: inner, cache: cache}
}

func (s *CachedSource) Name() string { return s.inner.Name() + "+cache" }

func (s *CachedSource) BulkBars(ctx context.Context, symbols []string, res market.Resolution, start, end time.Time) (map[string][]RawBar, error) {
	startMs, endMs := start.UnixMilli(), end.UnixMilli()
	allCovered := true
	for _, sym := range symbols {
		db, err := s.cache.db(sym, res)
		if err != nil {
			return nil, err
		}
		ok, err := s.cache.covered(ctx, db, startMs, endMs)
		if err != nil {
			return nil, err
		}
		if !ok {
			allCovered = false
			break
		}
	}
	if allCovered {
		out := make(map[string][]RawBar, len(symbols))
		for _, sym := range symbols {
			db, err := s.cache.db(sym, res)
			if err != nil {
				return nil, err
			}
			rows, err := s.cache.load(ctx, db, startMs, endMs)
			if err != nil {
				return nil, err
			}
			out[sym] = rows
		}
		logger.Debugf("[feed] 缓存命中 %s [%s,%s]", res, start.Format("2006-01-02"), end.Format("2006-01-02"))
		return out, nil
	}

	fetched, err := s.inner.BulkBars(ctx, symbols, res, start, end)
	if err != nil {
		return nil, err
	}
	for sym, rows := range fetched {
		db, err := s.cache.db(sym, res)
		if err != nil {
			return nil, err
		}
		if err := s.cache.insert(ctx, db, rows, startMs, endMs); err != nil {
			return nil, err
		}
	}
	return fetched, nil
}
