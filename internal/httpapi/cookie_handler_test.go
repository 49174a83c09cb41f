package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postCart(t *testing.T, h *CookieHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(body))
	h.SetCart(recorder, request)
	return recorder
}

func cartCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range recorder.Result().Cookies() {
		if c.Name == CartCookieName {
			return c
		}
	}
	t.Fatalf("no %q cookie in response", CartCookieName)
	return nil
}

func decodeCookieValue(t *testing.T, c *http.Cookie) cookiePayload {
	t.Helper()
	raw, err := url.QueryUnescape(c.Value)
	require.NoError(t, err)
	var payload cookiePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestSetCart_SetsEncodedCookie(t *testing.T) {
	h := NewCookieHandler(false, nil)

	recorder := postCart(t, h, `{"items":[{"id":"p1","qty":2},{"id":"p2","qty":1}]}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	c := cartCookie(t, recorder)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, cartCookieMaxAge, c.MaxAge)
	assert.False(t, c.Secure)

	payload := decodeCookieValue(t, c)
	require.Len(t, payload.Items, 2)
	assert.Equal(t, "p1", payload.Items[0].ID)
	assert.Equal(t, 2, payload.Items[0].Qty)
	assert.NotZero(t, payload.UpdatedAt)
}

func TestSetCart_SecureInProduction(t *testing.T) {
	h := NewCookieHandler(true, nil)

	recorder := postCart(t, h, `{"items":[]}`)
	assert.True(t, cartCookie(t, recorder).Secure)
}

func TestSetCart_CoercesQuantities(t *testing.T) {
	h := NewCookieHandler(false, nil)

	recorder := postCart(t, h, `{"items":[
		{"id":"frac","qty":2.9},
		{"id":"zero","qty":0},
		{"id":"neg","qty":-3}
	]}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeCookieValue(t, cartCookie(t, recorder))
	require.Len(t, payload.Items, 3)
	assert.Equal(t, 2, payload.Items[0].Qty) // floored
	assert.Equal(t, 1, payload.Items[1].Qty) // clamped
	assert.Equal(t, 1, payload.Items[2].Qty) // clamped
}

func TestSetCart_DropsMalformedEntries(t *testing.T) {
	h := NewCookieHandler(false, nil)

	recorder := postCart(t, h, `{"items":[
		{"id":"good","qty":1},
		{"id":42,"qty":1},
		{"id":"noqty"},
		{"id":"strqty","qty":"2"}
	]}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeCookieValue(t, cartCookie(t, recorder))
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "good", payload.Items[0].ID)
}

func TestSetCart_KeepsEmptyStringID(t *testing.T) {
	h := NewCookieHandler(false, nil)

	// Only the id's type is checked; an empty string is a valid id.
	recorder := postCart(t, h, `{"items":[{"id":"","qty":3}]}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeCookieValue(t, cartCookie(t, recorder))
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "", payload.Items[0].ID)
	assert.Equal(t, 3, payload.Items[0].Qty)
}

func TestSetCart_MissingItemsIsEmptyCart(t *testing.T) {
	h := NewCookieHandler(false, nil)

	recorder := postCart(t, h, `{}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeCookieValue(t, cartCookie(t, recorder))
	assert.Empty(t, payload.Items)
}

func TestSetCart_InvalidJSON(t *testing.T) {
	h := NewCookieHandler(false, nil)

	recorder := postCart(t, h, `{"items":`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSetCart_OversizedPayloadRefused(t *testing.T) {
	h := NewCookieHandler(false, nil)

	var sb strings.Builder
	sb.WriteString(`{"items":[`)
	for i := 0; i < 300; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"id":"product-with-a-rather-long-identifier-`)
		sb.WriteString(strings.Repeat("x", 10))
		sb.WriteString(`","qty":1}`)
	}
	sb.WriteString(`]}`)

	recorder := postCart(t, h, sb.String())
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestClearCart_ExpiresCookie(t *testing.T) {
	h := NewCookieHandler(false, nil)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodDelete, "/api/cart", nil)
	h.ClearCart(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	c := cartCookie(t, recorder)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
}
