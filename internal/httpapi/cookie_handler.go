package httpapi

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"cart-sync-service/internal/domain"
)

const (
	// CartCookieName is the cookie holding the encoded cart snapshot, read
	// by server-rendered pages.
	CartCookieName = "cart"

	// cartCookieMaxAge is 7 days, matching the persistence slot TTL.
	cartCookieMaxAge = 7 * 24 * 60 * 60

	// maxCookieValueBytes caps the encoded cookie value. Browsers drop
	// cookies past ~4KB, so an oversized payload is refused outright.
	maxCookieValueBytes = 4096
)

// CookieHandler implements the cart cookie endpoint: POST stores the
// snapshot in an httpOnly cookie, DELETE expires it.
type CookieHandler struct {
	secure bool
	logger *slog.Logger
}

// NewCookieHandler creates the handler. secure marks the cookie Secure;
// leave it false only in local development.
func NewCookieHandler(secure bool, logger *slog.Logger) *CookieHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CookieHandler{secure: secure, logger: logger}
}

type cookiePayload struct {
	Items     domain.Snapshot `json:"items"`
	UpdatedAt int64           `json:"updatedAt"` // unix milliseconds
}

// SetCart handles POST. Body: {"items":[{"id":"p1","qty":2}]}. Entries with
// a non-string id or non-numeric qty are dropped rather than failing the
// request; fractional quantities are floored and clamped to >= 1.
func (h *CookieHandler) SetCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	payload := cookiePayload{
		Items:     coerceItems(body.Items),
		UpdatedAt: time.Now().UnixMilli(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to encode cart")
		return
	}
	value := url.QueryEscape(string(raw))
	if len(value) > maxCookieValueBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "cart snapshot exceeds cookie size limit")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   cartCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ClearCart handles DELETE: the cookie is expired immediately.
func (h *CookieHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func coerceItems(raw []map[string]interface{}) domain.Snapshot {
	items := domain.Snapshot{}
	for _, entry := range raw {
		id, ok := entry["id"].(string)
		if !ok {
			continue
		}
		qty, ok := entry["qty"].(float64)
		if !ok {
			continue
		}
		q := int(math.Floor(qty))
		if q < 1 {
			q = 1
		}
		items = append(items, domain.SnapshotItem{ID: id, Qty: q})
	}
	return items
}
