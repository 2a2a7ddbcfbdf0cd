// Package auth provides authentication middleware for the exporter's HTTP
// endpoints.
//
// APIKey(mode, header, key, next) wraps an http.Handler and validates the API
// key from the named request header. When mode != "apikey" or key == "", the
// handler is returned unchanged (the default: scrapers on a private network).
package auth
