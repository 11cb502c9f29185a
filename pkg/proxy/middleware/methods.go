package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// MethodFilterMiddleware rejects requests whose method is not in allowed with
// 405 Method Not Allowed and an Allow header. An empty list allows everything.
func MethodFilterMiddleware(allowed []string) func(http.Handler) http.Handler {
	methods := lo.Uniq(lo.Map(allowed, func(m string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(m))
	}))
	allow := strings.Join(methods, ", ")

	return func(next http.Handler) http.Handler {
		if len(methods) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lo.Contains(methods, r.Method) {
				w.Header().Set("Allow", allow)
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
