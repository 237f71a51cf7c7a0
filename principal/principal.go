package principal

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidPrincipal is returned by New when a field fails validation.
	ErrInvalidPrincipal = errors.New("invalid principal")
	// ErrAuthorization is returned when forwarded identity headers are missing or malformed.
	ErrAuthorization = errors.New("authorization error")
)

// SystemRole is the service-wide role of a user.
type SystemRole string

const (
	RoleAdmin   SystemRole = "admin"
	RoleSupport SystemRole = "support"
	RoleUser    SystemRole = "user"
)

// Valid reports whether r is one of the known system roles.
func (r SystemRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupport, RoleUser:
		return true
	default:
		return false
	}
}

// HotelRole is the role a user holds inside one hotel.
type HotelRole string

const (
	HotelOwner   HotelRole = "owner"
	HotelManager HotelRole = "manager"
	HotelViewer  HotelRole = "viewer"
)

// Valid reports whether r is one of the known hotel roles.
func (r HotelRole) Valid() bool {
	switch r {
	case HotelOwner, HotelManager, HotelViewer:
		return true
	default:
		return false
	}
}

// HotelAccess grants a role inside a single hotel. The JSON field names are the
// wire names used in the hotels claim and the X-Hotels header.
type HotelAccess struct {
	HotelID int64     `json:"id"`
	Role    HotelRole `json:"user_role"`
}

// Principal is an authenticated user with its authorization context.
// The zero value is not a valid principal; use New.
type Principal struct {
	userID     int64
	systemRole SystemRole
	hotels     []HotelAccess
}

// New validates the inputs and returns an immutable Principal.
func New(userID int64, role SystemRole, hotels []HotelAccess) (Principal, error) {
	if userID <= 0 {
		return Principal{}, fmt.Errorf("%w: user id must be positive", ErrInvalidPrincipal)
	}
	if !role.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown system role %q", ErrInvalidPrincipal, role)
	}

	seen := make(map[int64]struct{}, len(hotels))
	copied := make([]HotelAccess, 0, len(hotels))
	for _, h := range hotels {
		if h.HotelID <= 0 {
			return Principal{}, fmt.Errorf("%w: hotel id must be positive", ErrInvalidPrincipal)
		}
		if !h.Role.Valid() {
			return Principal{}, fmt.Errorf("%w: unknown hotel role %q", ErrInvalidPrincipal, h.Role)
		}
		if _, dup := seen[h.HotelID]; dup {
			return Principal{}, fmt.Errorf("%w: duplicate hotel id %d", ErrInvalidPrincipal, h.HotelID)
		}
		seen[h.HotelID] = struct{}{}
		copied = append(copied, h)
	}

	return Principal{
		userID:     userID,
		systemRole: role,
		hotels:     copied,
	}, nil
}

// UserID returns the numeric user identifier.
func (p Principal) UserID() int64 { return p.userID }

// Subject returns the user ID in the decimal form used for the JWT sub claim
// and the store keys.
func (p Principal) Subject() string { return strconv.FormatInt(p.userID, 10) }

// SystemRole returns the service-wide role.
func (p Principal) SystemRole() SystemRole { return p.systemRole }

// Hotels returns a copy of the hotel access list.
func (p Principal) Hotels() []HotelAccess {
	out := make([]HotelAccess, len(p.hotels))
	copy(out, p.hotels)
	return out
}

// HotelRole returns the principal's role in hotelID, if any.
func (p Principal) HotelRole(hotelID int64) (HotelRole, bool) {
	for _, h := range p.hotels {
		if h.HotelID == hotelID {
			return h.Role, true
		}
	}
	return "", false
}

// IsZero reports whether p was not built through New.
func (p Principal) IsZero() bool { return p.userID == 0 }

// ParseSubject converts a sub claim back into a user ID.
func ParseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidPrincipal, sub)
	}
	return id, nil
}
