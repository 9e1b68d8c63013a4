package password

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrPolicy is wrapped by every policy violation returned from Policy.Check.
var ErrPolicy = errors.New("password policy violation")

// Policy describes the composition rules a new password must satisfy.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy requires eight characters mixing upper and lower case letters,
// digits and symbols.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Check returns nil when pw satisfies p. The returned error names the first
// failed rule and wraps ErrPolicy.
func (p Policy) Check(pw string) error {
	n := len([]rune(pw))
	if p.MinLength > 0 && n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPolicy, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrPolicy, p.MaxLength)
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return fmt.Errorf("%w: must contain an uppercase letter", ErrPolicy)
	case p.RequireLower && !lower:
		return fmt.Errorf("%w: must contain a lowercase letter", ErrPolicy)
	case p.RequireDigit && !digit:
		return fmt.Errorf("%w: must contain a digit", ErrPolicy)
	case p.RequireSpecial && !special:
		return fmt.Errorf("%w: must contain a special character", ErrPolicy)
	}
	return nil
}
