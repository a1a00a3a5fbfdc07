package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booktrader/internal/errs"
	"booktrader/internal/market"
	"booktrader/internal/store"
)

// SQLiteSource 从 snapshots 表读取指定品种的快照，并支持导入。
type SQLiteSource struct {
	store      *store.Store
	db         *sql.DB
	instrument string
	window     Window
	logger     *zap.Logger
}

// NewSQLiteSource 创建 SQLite 数据源并确保表结构存在。
func NewSQLiteSource(st *store.Store, instrument string, window Window, logger *zap.Logger) (*SQLiteSource, error) {
	if st == nil {
		return nil, errors.New("marketdata: store 不能为空")
	}
	if instrument == "" {
		return nil, fmt.Errorf("marketdata: %w: instrument 不能为空", errs.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SQLiteSource{store: st, db: st.DB(), instrument: instrument, window: window, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSource) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS snapshots (
	instrument TEXT NOT NULL,
	ts INTEGER NOT NULL,
	price REAL NOT NULL,
	balance REAL NOT NULL,
	volume INTEGER NOT NULL,
	PRIMARY KEY (instrument, ts)
);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("marketdata: 初始化表失败: %w", err)
	}
	return nil
}

// Save 在单个事务中写入快照，已存在的时间点会被覆盖。
func (s *SQLiteSource) Save(ctx context.Context, snapshots []market.Snapshot) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO snapshots (instrument, ts, price, balance, volume) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("准备写入失败: %w", err)
		}
		defer stmt.Close()

		for _, snap := range snapshots {
			if _, err := stmt.ExecContext(ctx, s.instrument, snap.Time.UnixNano(), snap.Price, snap.Balance, snap.Volume); err != nil {
				return fmt.Errorf("写入快照 %s 失败: %w", snap, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("marketdata: %w", err)
	}
	s.logger.Info("快照已导入", zap.String("instrument", s.instrument), zap.Int("snapshots", len(snapshots)))
	return nil
}

func (s *SQLiteSource) Load(ctx context.Context) ([]market.Snapshot, error) {
	query := `SELECT ts, price, balance, volume FROM snapshots WHERE instrument = ?`
	args := []any{s.instrument}
	if !s.window.From.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, s.window.From.UnixNano())
	}
	if !s.window.To.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, s.window.To.UnixNano())
	}
	query += ` ORDER BY ts`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("marketdata: %w: 查询快照失败: %w", errs.ErrDataLoad, err)
	}
	defer rows.Close()

	var out []market.Snapshot
	for rows.Next() {
		var (
			ts   int64
			snap market.Snapshot
		)
		if err := rows.Scan(&ts, &snap.Price, &snap.Balance, &snap.Volume); err != nil {
			return nil, fmt.Errorf("marketdata: %w: 解析快照失败: %w", errs.ErrDataLoad, err)
		}
		snap.Time = time.Unix(0, ts).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marketdata: %w: 读取快照失败: %w", errs.ErrDataLoad, err)
	}
	if err := market.ValidateSequence(out); err != nil {
		return nil, fmt.Errorf("marketdata: %w: %s: %w", errs.ErrDataLoad, s.instrument, err)
	}
	return out, nil
}
