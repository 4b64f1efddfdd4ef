package validate

import (
	"regexp"
	"strconv"
	"strings"

	"kinara/internal/domain"
)

var (
	reEmail  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ      = regexp.MustCompile(`^[A-Za-z0-9 _.'\\-]{1,50}$`)
	reID     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reName   = regexp.MustCompile(`^[\p{L} .'-]+$`)
	reMSISDN = regexp.MustCompile(`^254[17][0-9]{8}$`)
	reDigits = regexp.MustCompile(`^[0-9]+$`)
)

const (
	maxPrice = 10_000_000 // KES
	maxStock = 100_000
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) > 50 {
		s = s[:50]
	}
	return s, reQ.MatchString(s)
}

// Qty parses a quantity to add, clamped to 1..50.
func Qty(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	} // clamp to avoid abuse
	return n
}

// SetQty parses an absolute cart quantity. Zero is allowed and removes the line.
func SetQty(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 50 {
		return 0, false
	}
	return n, true
}

// ID validates a simple resource identifier (product/category/order ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a customer's full name.
func Name(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || len([]rune(s)) > 60 {
		return "", false
	}
	return s, reName.MatchString(s)
}

// Phone normalises a Kenyan mobile number (07.., 01.., +254.., 254..) to the
// 2547XXXXXXXX / 2541XXXXXXXX form M-Pesa expects.
func Phone(s string) (string, bool) {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	s = strings.TrimPrefix(r.Replace(strings.TrimSpace(s)), "+")
	switch {
	case strings.HasPrefix(s, "0") && len(s) == 10:
		s = "254" + s[1:]
	case (strings.HasPrefix(s, "7") || strings.HasPrefix(s, "1")) && len(s) == 9:
		s = "254" + s
	}
	if !reMSISDN.MatchString(s) {
		return "", false
	}
	return s, true
}

// Location validates a free-text delivery location.
func Location(s string) (string, bool) {
	return Text(s, 3, 120)
}

// Text trims s and checks its length in runes. Markup characters are rejected.
func Text(s string, min, max int) (string, bool) {
	s = strings.TrimSpace(s)
	n := len([]rune(s))
	if n < min || n > max {
		return "", false
	}
	if strings.ContainsAny(s, "<>\x00") {
		return "", false
	}
	return s, true
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

func Status(s string) (domain.OrderStatus, bool) {
	return domain.ParseOrderStatus(s)
}

// Price parses a whole-shilling amount. Thousands separators are accepted.
func Price(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !reDigits.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 || n > maxPrice {
		return 0, false
	}
	return n, true
}

func Stock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !reDigits.MatchString(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > maxStock {
		return 0, false
	}
	return n, true
}
