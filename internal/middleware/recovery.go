package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// onPanicで500レスポンスを返すミドルウェアを生成する。onPanicがnilの場合はプレーンテキストを返す。
func NewRecoveryMiddleware(logger *slog.Logger, onPanic http.HandlerFunc) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if onPanic == nil {
		onPanic = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panicから復旧しました",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				onPanic(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
