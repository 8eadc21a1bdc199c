package validation

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
)

// Query parametre kuralları
const (
	RuleIdentifier         = "identifier"
	RuleNonNegativeInteger = "non_negative_integer"
	RulePositiveInteger    = "positive_integer"
)

// userId ve appId gibi dış kaynaklı kimlikler
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.@]{1,128}$`)

// ValidateQueryParameters query parametrelerini kurallara göre doğrular.
// Olmayan parametreler atlanır, zorunluluk handler'ın işidir.
func ValidateQueryParameters(r *http.Request, rules map[string]string) error {
	query := r.URL.Query()

	for paramName, rule := range rules {
		if !query.Has(paramName) {
			continue
		}
		paramValue := query.Get(paramName)

		if paramValue == "" {
			return fmt.Errorf("query parameter '%s' must not be empty", paramName)
		}

		switch rule {
		case RuleIdentifier:
			if !identifierPattern.MatchString(paramValue) {
				return fmt.Errorf("query parameter '%s' has an invalid format", paramName)
			}
		case RuleNonNegativeInteger:
			if val, err := strconv.Atoi(paramValue); err != nil || val < 0 {
				return fmt.Errorf("query parameter '%s' must be a non-negative integer, got '%s'", paramName, paramValue)
			}
		case RulePositiveInteger:
			if val, err := strconv.Atoi(paramValue); err != nil || val <= 0 {
				return fmt.Errorf("query parameter '%s' must be a positive integer, got '%s'", paramName, paramValue)
			}
		}
	}

	return nil
}
