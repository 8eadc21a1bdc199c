package middleware

import (
	"fmt"
	"net/http"

	"github.com/craiverse/credits-service/internal/middleware/errors"
)

// getErrorMessage status code'a göre custom error mesajı alır
func getErrorMessage(statusCode int, config *errors.ErrorConfig) string {
	if customMessage, exists := config.CustomErrorMap[statusCode]; exists {
		return customMessage
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP Error %d", statusCode)
}

// contains slice'da item var mı kontrol eder
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// truncateString string'i belirtilen uzunlukta keser
func truncateString(s string, maxLength int) string {
	if maxLength <= 3 || len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
