package order

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phoneRe = regexp.MustCompile(`^\+\d{7,15}$`)
)

// ValidationError names the first form field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidEmail reports whether s looks like an email address. Any Unicode
// whitespace disqualifies it; \S in emailRe only covers ASCII.
func ValidEmail(s string) bool {
	if strings.ContainsFunc(s, unicode.IsSpace) {
		return false
	}
	return emailRe.MatchString(s)
}

// NormalizePhone turns a Serbian phone number as typed into E.164-like form.
func NormalizePhone(raw string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return ""
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)

	switch {
	case strings.HasPrefix(s, "+"):
		return "+" + digits
	case strings.HasPrefix(digits, "381"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+381" + digits[1:]
	case strings.HasPrefix(digits, "6") && len(digits) >= 8 && len(digits) <= 9:
		return "+381" + digits
	default:
		return "+" + digits
	}
}

// Validate checks the form field by field and returns the first failure as a
// *ValidationError.
func (f *Form) Validate() error {
	checks := []struct {
		field   string
		ok      bool
		message string
	}{
		{"email", ValidEmail(f.Email), "Unesite ispravan email."},
		{"firstName", strings.TrimSpace(f.FirstName) != "", "Unesite ime."},
		{"lastName", strings.TrimSpace(f.LastName) != "", "Unesite prezime."},
		{"address", len([]rune(strings.TrimSpace(f.Address))) >= 5, "Unesite adresu (minimum 5 karaktera)."},
		{"postalCode", len([]rune(strings.TrimSpace(f.PostalCode))) >= 3, "Unesite poštanski broj (minimum 3 broja)."},
		{"city", strings.TrimSpace(f.City) != "", "Unesite grad."},
		{"phone", phoneRe.MatchString(NormalizePhone(f.Phone)), "Unesite ispravan broj telefona."},
		{"consentShipping", f.ConsentShipping, "Morate prihvatiti kontakt radi isporuke."},
	}
	for _, c := range checks {
		if !c.ok {
			return &ValidationError{Field: c.field, Message: c.message}
		}
	}
	return nil
}
