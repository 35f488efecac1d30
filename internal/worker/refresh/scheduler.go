// Package refresh はサイトマップなどの生成物を定期的に作り直すバックグラウンド処理を提供する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task は定期実行する再生成処理。
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler は登録されたタスクを一定間隔で実行する。
// 1サイクル内のタスクはsemaphoreで並列数を制限して実行する。
type Scheduler struct {
	tasks          []Task
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合は2を使用する。
func NewScheduler(tasks []Task, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tasks: tasks, logger: logger, maxConcurrency: maxConcurrency}
}

// SitemapTask はサイトマップ再生成のタスクを返す。
func SitemapTask(regenerate func(ctx context.Context) error) Task {
	return Task{Name: "sitemap", Run: regenerate}
}

// Start はintervalごとにRunOnceを実行する。起動直後にも1回実行する。
// 失敗したタスクがあった場合はNextDelayに従って早めに再実行する。
// コンテキストがキャンセルされるまで戻らない。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("再生成スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("task_count", len(s.tasks)),
	)

	failures := 0
	for {
		if s.RunOnce(ctx) > 0 {
			failures++
		} else {
			failures = 0
		}

		timer := time.NewTimer(NextDelay(interval, failures))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("再生成スケジューラを停止しました")
			return
		case <-timer.C:
		}
	}
}

// RunOnce は全タスクを1回実行し、失敗したタスク数を返す。
// 個々のタスクの失敗はログに記録し、他のタスクは継続する。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := time.Now()

	sem := make(chan struct{}, s.maxConcurrency)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for _, task := range s.tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := t.Run(ctx); err != nil {
				s.logger.ErrorContext(ctx, "再生成タスクに失敗しました",
					slog.String("task", t.Name),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(task)
	}

	wg.Wait()

	s.logger.Info("再生成サイクルが完了しました",
		slog.Int("task_count", len(s.tasks)),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return failed
}
