package sanitizer

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	supportedRegions = []string{
		"RU",
		"IL",
		"US",
	}

	reValidPhone = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{6,18}$`)
)

// NormalizePhone parses a user-entered phone number and returns it in E.164
// form. Returns empty string when the number cannot be parsed for any
// supported region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" || !reValidPhone.MatchString(phone) {
		return ""
	}

	for _, region := range supportedRegions {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err == nil && phonenumbers.IsValidNumber(parsedNumber) {
			return phonenumbers.Format(parsedNumber, phonenumbers.E164)
		}
	}
	return ""
}
