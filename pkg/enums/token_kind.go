package enums

import "fmt"

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var validTokenKinds = []TokenKind{
	TokenKindAccess,
	TokenKindRefresh,
}

// String implements fmt.Stringer.
func (k TokenKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TokenKind.
func (k TokenKind) IsValid() bool {
	for _, candidate := range validTokenKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTokenKind converts raw input into a TokenKind.
func ParseTokenKind(value string) (TokenKind, error) {
	for _, candidate := range validTokenKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid token kind %q", value)
}
