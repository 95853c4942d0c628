// Package httpwrap holds handler wrappers shared by services.
package httpwrap

import "net/http"

// ClearRawPath drops r.URL.RawPath so chi matches {id} segments against the
// decoded path. An escaped id such as "a%2Fb" then routes like any other.
func ClearRawPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.RawPath = ""
		next.ServeHTTP(w, r)
	})
}
