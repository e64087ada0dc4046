package identity

import (
	"os"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion returns the ISO region used to parse mobile numbers that
// arrive without a leading '+'. Env: RIPPLE_DEFAULT_REGION (default "IN",
// matching the deployment this system was built for).
func DefaultRegion() string {
	if v := strings.TrimSpace(os.Getenv("RIPPLE_DEFAULT_REGION")); v != "" {
		return strings.ToUpper(v)
	}
	return "IN"
}

// NormalizeMobile validates a mobile number and canonicalizes it to E.164
// ("+<countrycode><number>"). Numbers without a country prefix are parsed
// against region. Returns ErrInvalidMobile for anything unparseable or not
// a valid number.
func NormalizeMobile(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidMobile
	}
	if region == "" {
		region = DefaultRegion()
	}

	parsed, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", ErrInvalidMobile
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidMobile
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
