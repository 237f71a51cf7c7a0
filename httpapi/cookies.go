package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hotelcast/tokenauth"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	accessCookiePath  = "/"
	refreshCookiePath = "/auth"
)

// CookieConfig controls the auth cookies. Secure must be on in production.
type CookieConfig struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cfg CookieConfig) set(c *gin.Context, pair tokenauth.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, pair.AccessToken, int(cfg.AccessTTL.Seconds()), accessCookiePath, cfg.Domain, cfg.Secure, true)
	c.SetCookie(RefreshCookie, pair.RefreshToken, int(cfg.RefreshTTL.Seconds()), refreshCookiePath, cfg.Domain, cfg.Secure, true)
}

func (cfg CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, "", -1, accessCookiePath, cfg.Domain, cfg.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, refreshCookiePath, cfg.Domain, cfg.Secure, true)
}
