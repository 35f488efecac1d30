package middleware

import "net/http"

// NewBodyLimitMiddleware はリクエストボディをmaxBytesに制限する。
// 超過分の読み込みはhttp.MaxBytesErrorになる。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
