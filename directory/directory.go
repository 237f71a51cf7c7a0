package directory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hotelcast/tokenauth/principal"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned by Lookup for unknown or inactive users.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned by Authenticate for unknown emails,
	// inactive users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable is returned when the backing database fails.
	ErrUnavailable = errors.New("directory unavailable")
)

// User is a directory row with its hotel memberships.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Active       bool
	SystemRole   principal.SystemRole
	Hotels       []principal.HotelAccess
}

// Principal validates u into a principal.
func (u User) Principal() (principal.Principal, error) {
	return principal.New(u.ID, u.SystemRole, u.Hotels)
}

// dummyHash keeps the cost of a failed lookup close to a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("directory-dummy-password"), bcrypt.DefaultCost)
	return hash
})

// HashPassword returns a bcrypt hash of password. cost <= 0 selects
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func burnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
}

// authenticate applies the credential rules shared by every directory.
func authenticate(u User, found bool, password string) (principal.Principal, error) {
	if !found {
		burnCompare(password)
		return principal.Principal{}, ErrInvalidCredentials
	}
	if !checkPassword(u.PasswordHash, password) || !u.Active {
		return principal.Principal{}, ErrInvalidCredentials
	}
	p, err := u.Principal()
	if err != nil {
		return principal.Principal{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return p, nil
}
