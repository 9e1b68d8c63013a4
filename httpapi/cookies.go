package httpapi

import (
	"net/http"

	"github.com/MrEthical07/accountauth/middleware"
)

const refreshCookie = "refreshToken"

func (h *Handler) setTokenCookies(w http.ResponseWriter, access, refresh string) {
	if access != "" {
		http.SetCookie(w, h.cookie(middleware.AccessCookie, access, int(h.engine.AccessTTL().Seconds())))
	}
	if refresh != "" {
		http.SetCookie(w, h.cookie(refreshCookie, refresh, int(h.engine.RefreshTTL().Seconds())))
	}
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(middleware.AccessCookie, "", -1))
	http.SetCookie(w, h.cookie(refreshCookie, "", -1))
}

func (h *Handler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
