package http

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds the headers every broker response carries.
// The broker only answers JSON, so nothing may be framed, sniffed or cached.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// LoopbackHostMiddleware rejects requests whose Host header does not name
// the local machine, so a web page cannot reach the broker through a
// rebound DNS name.
func LoopbackHostMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsLoopbackHost(c.Request.Host) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: "host not allowed",
				Code:  CodeForbiddenHost,
			})
			return
		}
		c.Next()
	}
}

// IsLoopbackHost reports whether a host, with or without port, names the
// local machine.
func IsLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
