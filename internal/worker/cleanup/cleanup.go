// Package cleanup は期限切れログインセッションの定期削除ジョブを提供する。
// SESSION_MAX_AGEを超えて作成されたセッションは、Cookieが失効済みのため
// 二度と参照されない。起動時と日次でまとめて削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/trug/internal/metrics"
)

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = 24 * time.Hour

// SessionPurger は指定時刻より前に作成されたセッションを削除するインターフェース。
// repository.SessionRepositoryの部分集合。
type SessionPurger interface {
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupJob は保持期間を超過したセッションの削除ジョブ。
// 削除対象がない場合もエラーにならない（冪等）。
type SessionCleanupJob struct {
	sessions SessionPurger
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time

	MaxAge time.Duration // セッションの保持期間
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(sessions SessionPurger, maxAge time.Duration, mc metrics.MetricsCollector, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{
		sessions: sessions,
		metrics:  mc,
		logger:   logger,
		now:      time.Now,
		MaxAge:   maxAge,
	}
}

// Run はcreated_atがMaxAgeより古いセッションを削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if j.MaxAge <= 0 {
		return fmt.Errorf("invalid session max age: %s", j.MaxAge)
	}

	start := time.Now()
	cutoff := j.now().Add(-j.MaxAge)

	deleted, err := j.sessions.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return fmt.Errorf("failed to purge sessions: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsPurged(deleted)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の失敗はログに記録して継続する。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session cleanup stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SessionCleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("session cleanup run skipped", slog.String("error", err.Error()))
	}
}
