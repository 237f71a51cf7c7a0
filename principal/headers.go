package principal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Header names used by the gateway-to-service handoff.
const (
	HeaderUserID     = "X-User-Id"
	HeaderSystemRole = "X-System-Role"
	HeaderHotels     = "X-Hotels"
)

// WriteHeaders sets the handoff headers for p, replacing any existing values.
func WriteHeaders(h http.Header, p Principal) error {
	hotels := p.hotels
	if hotels == nil {
		hotels = []HotelAccess{}
	}
	encoded, err := json.Marshal(hotels)
	if err != nil {
		return err
	}

	h.Set(HeaderUserID, p.Subject())
	h.Set(HeaderSystemRole, string(p.systemRole))
	h.Set(HeaderHotels, string(encoded))
	return nil
}

// StripHeaders removes handoff headers so a client cannot inject its own identity.
func StripHeaders(h http.Header) {
	h.Del(HeaderUserID)
	h.Del(HeaderSystemRole)
	h.Del(HeaderHotels)
}

// UserIDFromHeaders returns the forwarded user ID. It fails with ErrAuthorization
// when the header is missing or not a positive integer.
func UserIDFromHeaders(h http.Header) (int64, error) {
	raw := strings.TrimSpace(h.Get(HeaderUserID))
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s header", ErrAuthorization, HeaderUserID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: malformed %s header", ErrAuthorization, HeaderUserID)
	}
	return id, nil
}

// FromHeaders rebuilds a Principal from the handoff headers.
func FromHeaders(h http.Header) (Principal, error) {
	userID, err := UserIDFromHeaders(h)
	if err != nil {
		return Principal{}, err
	}

	role := SystemRole(strings.TrimSpace(h.Get(HeaderSystemRole)))
	if role == "" {
		return Principal{}, fmt.Errorf("%w: missing %s header", ErrAuthorization, HeaderSystemRole)
	}

	raw := bytes.TrimSpace([]byte(h.Get(HeaderHotels)))
	if len(raw) == 0 {
		return Principal{}, fmt.Errorf("%w: missing %s header", ErrAuthorization, HeaderHotels)
	}
	if raw[0] != '[' {
		return Principal{}, fmt.Errorf("%w: %s header is not a list", ErrAuthorization, HeaderHotels)
	}
	var hotels []HotelAccess
	if err := json.Unmarshal(raw, &hotels); err != nil {
		return Principal{}, fmt.Errorf("%w: malformed %s header", ErrAuthorization, HeaderHotels)
	}

	p, err := New(userID, role, hotels)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrAuthorization, err)
	}
	return p, nil
}
