package domain

import (
	"errors"
	"regexp"
)

// Validation Helpers

var (
	ErrInvalidInterfaceName = errors.New("invalid interface name")
	ErrInvalidCountryCode   = errors.New("invalid country code")
)

var (
	interfaceRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
	countryRegex   = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// IsValidInterface checks if the string is a safe interface name (alphanumeric + - _)
func IsValidInterface(iface string) bool {
	// IFNAMSIZ is 16 including the terminating NUL
	if len(iface) == 0 || len(iface) > 15 {
		return false
	}
	return interfaceRegex.MatchString(iface)
}

// IsValidCountryCode checks for an ISO 3166-1 alpha-2 shaped code.
func IsValidCountryCode(cc string) bool {
	return countryRegex.MatchString(cc)
}
