// Package httpapi is the auth service's HTTP transport, built on gin.
//
// Routes live under /auth. Tokens travel as HttpOnly cookies: access_token on
// path "/" and refresh_token on path "/auth". Errors use the envelope from
// the middleware package, with the X-Trace-ID of the request.
package httpapi
