package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/accountauth"
)

// ClientIP stores the host part of r.RemoteAddr with
// accountauth.WithClientIP. Mount chi's RealIP before it when the service
// runs behind a proxy.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ctx := accountauth.WithClientIP(r.Context(), host)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
