package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when no user matches login and password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when the principal's role may not perform an action.
	ErrForbidden = errors.New("permission denied")
)

// Role is a user role as stored in the role table.
type Role string

const (
	RoleAdmin   Role = "Администратор"
	RoleManager Role = "Менеджер"
	RoleClient  Role = "Авторизированный клиент"
	RoleGuest   Role = "Гость"
)

// ParseRole maps a stored role name to a Role. Unknown names get client rights.
func ParseRole(name string) Role {
	switch r := Role(strings.TrimSpace(name)); r {
	case RoleAdmin, RoleManager, RoleClient, RoleGuest:
		return r
	default:
		return RoleClient
	}
}

// IsStaff reports whether the role belongs to shop staff.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanFilter reports whether the catalog search and filters are available.
func (r Role) CanFilter() bool { return r.IsStaff() }

// CanViewOrders reports whether the order list is available.
func (r Role) CanViewOrders() bool { return r.IsStaff() }

// CanEdit reports whether products and orders may be changed.
func (r Role) CanEdit() bool { return r == RoleAdmin }

// Principal is an authenticated user, or a guest.
type Principal struct {
	UserID   int32  `json:"userId,omitempty"`
	Login    string `json:"login"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

// Guest returns the principal for an anonymous visitor.
func Guest() *Principal {
	return &Principal{Login: "guest", FullName: "Гость", Role: RoleGuest}
}

// ResolveCredential authenticates login and password and returns the user's
// principal, or ErrInvalidCredentials.
func (s *Service) ResolveCredential(ctx context.Context, login, password string) (*Principal, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	const query = `
		SELECT u.user_id, u.login, u.full_name, u.password, COALESCE(r.role_name, '')
		FROM app_user u
		LEFT JOIN role r ON r.role_id = u.role_id
		WHERE u.login = $1`

	var p Principal
	var stored, role string
	err := s.pool.QueryRow(ctx, query, login).Scan(&p.UserID, &p.Login, &p.FullName, &stored, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if !PasswordMatches(stored, password) {
		return nil, ErrInvalidCredentials
	}

	p.Role = ParseRole(role)
	return &p, nil
}

// PasswordMatches compares a stored password with a candidate. Stored
// values with a bcrypt prefix are verified as hashes, anything else is
// compared in constant time as plain text.
func PasswordMatches(stored, candidate string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// NewPasswordHasher returns a function that bcrypt-hashes passwords at cost.
func NewPasswordHasher(cost int) func(string) (string, error) {
	return func(password string) (string, error) {
		if isBcryptHash(password) {
			return password, nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		return string(hash), nil
	}
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
