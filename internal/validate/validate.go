package validate

import (
	"regexp"
	"strings"
)

const maxQty = 50

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reItem  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Qty normalizes an add-to-cart quantity into 1..50.
func Qty(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxQty {
		return maxQty
	} // clamp to avoid abuse
	return n
}

// SetQty caps a quantity update at 50. Values below 1 pass through: they remove the line.
func SetQty(n int) int {
	if n > maxQty {
		return maxQty
	}
	return n
}

// ID validates a simple resource identifier (product/variant ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// ItemID validates a cart line id, the concatenation of a product and variant id.
func ItemID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reItem.MatchString(s)
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 20 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
