// Package cleanup は検証に使われなくなったセッションの定期削除ジョブを提供する。
// 発行から最大有効期間を超えたトークンはセッションの有無に関係なく検証で拒否されるため、
// そのセッション行を削除しても認証結果は変わらない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// purgeLeeway はトークン検証の発行時刻の許容誤差を含めた猶予。
const purgeLeeway = time.Minute

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionPurgeJob はトークンの最大有効期間を超えたセッションを削除するジョブ。
// 冪等な削除処理のため、任意の間隔で繰り返し実行してよい。
type SessionPurgeJob struct {
	db     Executor
	logger *slog.Logger
	MaxAge time.Duration // トークンの最大有効期間
}

// NewSessionPurgeJob は新しいSessionPurgeJobを生成する。
func NewSessionPurgeJob(db Executor, logger *slog.Logger, maxAge time.Duration) *SessionPurgeJob {
	return &SessionPurgeJob{
		db:     db,
		logger: logger,
		MaxAge: maxAge,
	}
}

// Run はcreated_atがMaxAgeと猶予を超えて古いセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionPurgeJob) Run(ctx context.Context) error {
	start := time.Now()

	threshold := j.MaxAge + purgeLeeway
	interval := fmt.Sprintf("%d seconds", int64(threshold/time.Second))

	query := `DELETE FROM auth_sessions WHERE created_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("session purge failed",
			slog.String("error", err.Error()),
			slog.Duration("max_age", j.MaxAge),
		)
		return fmt.Errorf("failed to purge sessions: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to get purged session count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("session purge completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("max_age", j.MaxAge),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後interval間隔でRunを実行する。
// ctxがキャンセルされるまでブロックする。失敗はログに記録して次回に持ち越す。
func (j *SessionPurgeJob) Start(ctx context.Context, interval time.Duration) {
	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *SessionPurgeJob) runLogged(ctx context.Context) {
	// Runがエラー内容をログに記録する
	_ = j.Run(ctx)
}
