package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const (
	flashCookieName = "budgetwatch_flash"

	// Browsers drop cookies above about 4KB.
	maxFlashCookieBytes = 3072
	maxFlashMessage     = 256
)

// Flash is a one-shot message shown on the next rendered page. Category is
// one of success, warning, danger or info.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// setFlashes stores messages for the next page view. Long messages are
// shortened and the oldest ones dropped until the cookie fits.
func setFlashes(w http.ResponseWriter, flashes ...Flash) {
	out := make([]Flash, 0, len(flashes))
	for _, f := range flashes {
		if r := []rune(f.Message); len(r) > maxFlashMessage {
			f.Message = string(r[:maxFlashMessage]) + "…"
		}
		out = append(out, f)
	}

	var value string
	for len(out) > 0 {
		raw, err := json.Marshal(out)
		if err != nil {
			return
		}
		value = base64.RawURLEncoding.EncodeToString(raw)
		if len(value) <= maxFlashCookieBytes {
			break
		}
		out = out[1:]
	}
	if len(out) == 0 {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns the pending messages and clears the cookie. A tampered
// or unreadable cookie yields no messages.
func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
