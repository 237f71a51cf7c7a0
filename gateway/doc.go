// Package gateway turns a verified access token into a [principal.Principal]
// at the edge of the system. It never consults the token store: access tokens
// are trusted until their exp claim.
package gateway
