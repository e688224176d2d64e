package httputil

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of r.RemoteAddr. Behind a proxy the router's
// RealIP middleware has already replaced RemoteAddr with the forwarded
// address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
