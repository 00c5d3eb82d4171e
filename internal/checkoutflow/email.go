package checkoutflow

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// PlaceholderEmailDomain is used when a donor gives no email; the gateway requires one.
const PlaceholderEmailDomain = "donors.invalid"

const minPhoneDigits = 7

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Donor holds the details collected on the Details step.
type Donor struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Contact returns the value stored as donor_contact: email when given, else phone.
func (d Donor) Contact() string {
	if email := strings.TrimSpace(d.Email); email != "" {
		return email
	}
	return strings.TrimSpace(d.Phone)
}

// DonorEmail picks the address sent to the gateway.
func DonorEmail(d Donor) string {
	if email := strings.TrimSpace(d.Email); email != "" {
		return email
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, d.Phone)
	if len(digits) >= minPhoneDigits {
		return fmt.Sprintf("%s@%s", digits, PlaceholderEmailDomain)
	}
	first := slug(d.FirstName)
	last := slug(d.LastName)
	switch {
	case first != "" && last != "":
		return fmt.Sprintf("%s.%s@%s", first, last, PlaceholderEmailDomain)
	case first != "":
		return fmt.Sprintf("%s@%s", first, PlaceholderEmailDomain)
	case last != "":
		return fmt.Sprintf("%s@%s", last, PlaceholderEmailDomain)
	default:
		return "donor@" + PlaceholderEmailDomain
	}
}

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-"), "-")
}
