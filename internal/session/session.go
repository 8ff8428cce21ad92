package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCashier = "cashier"
	RoleManager = "manager"
)

var (
	ErrMissingToken = errors.New("missing session token")
)

// POSRoles lists the roles allowed to operate the POS view
var POSRoles = []string{RoleCashier, RoleManager}

// Session is the authenticated identity of the operator. It is created once at
// login and passed explicitly to every component that talks to the POS API.
type Session struct {
	Token     string
	Username  string
	Role      string
	CashierID string
	ExpiresAt time.Time // zero when the token carries no expiry
}

// New builds a session from a login response. JWT claims are read without
// signature verification: the terminal never holds the signing key and only
// uses them for display and expiry.
func New(token, username, role string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	s := &Session{
		Token:    token,
		Username: username,
		Role:     role,
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(stripScheme(token), claims); err != nil {
		// Opaque token
		return s, nil
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	s.CashierID = claimString(claims, "id", "user_id", "userId", "sub")
	if s.Role == "" {
		s.Role = claimString(claims, "role")
	}

	return s, nil
}

// AuthorizationHeader renders the Authorization header value for the token
func (s *Session) AuthorizationHeader(scheme string) string {
	if scheme == "" || strings.Contains(s.Token, " ") {
		return s.Token
	}
	return scheme + " " + s.Token
}

// Expired reports whether the token expiry has passed at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// HasRole reports whether the session role is one of roles
func (s *Session) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(s.Role, r) {
			return true
		}
	}
	return false
}

// CanOperatePOS reports whether the session may use the POS view
func (s *Session) CanOperatePOS() bool {
	return s.HasRole(POSRoles...)
}

// DisplayName is the cashier name shown on receipts
func (s *Session) DisplayName() string {
	if s.Username != "" {
		return s.Username
	}
	return s.CashierID
}

func stripScheme(token string) string {
	if i := strings.LastIndex(token, " "); i >= 0 {
		return token[i+1:]
	}
	return token
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
