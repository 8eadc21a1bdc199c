package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ValidateContent content validation (JSON, Content-Type, Content-Length)
func ValidateContent(r *http.Request, config *Config) error {
	if r.ContentLength > config.MaxBodySize {
		return fmt.Errorf("request body too large, maximum size is %d bytes", config.MaxBodySize)
	}

	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return nil
	}

	if err := validateContentType(r, config.ContentTypes); err != nil {
		return err
	}

	if config.JSONValidation && isJSONRequest(r) {
		return validateJSONBody(r, config.MaxBodySize, config.RequireNonEmptyJSON)
	}

	return nil
}

// validateContentType content type'ı doğrular
func validateContentType(r *http.Request, allowedTypes []string) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return fmt.Errorf("Content-Type header is required")
	}

	// charset parametresi olabilir
	for _, allowedType := range allowedTypes {
		if strings.HasPrefix(strings.ToLower(contentType), allowedType) {
			return nil
		}
	}

	return fmt.Errorf("unsupported Content-Type %s, allowed: %s",
		contentType, strings.Join(allowedTypes, ", "))
}

// isJSONRequest JSON request mi kontrol eder
func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

// validateJSONBody gövdenin tek bir JSON objesi olduğunu kontrol eder.
// Chunked gövdeler de maxSize ile sınırlanır.
func validateJSONBody(r *http.Request, maxSize int64, requireNonEmpty bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if requireNonEmpty {
			return fmt.Errorf("JSON body is required")
		}
		return nil
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		return fmt.Errorf("request body could not be read: %w", err)
	}
	if int64(len(bodyBytes)) > maxSize {
		return fmt.Errorf("request body too large, maximum size is %d bytes", maxSize)
	}

	// middleware chain için body'yi geri koy
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		if requireNonEmpty {
			return fmt.Errorf("JSON body must not be empty")
		}
		return nil
	}

	var jsonData map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &jsonData); err != nil {
		return fmt.Errorf("invalid JSON body: expected an object")
	}

	return nil
}

// ValidateMethod HTTP methodunu doğrular
func ValidateMethod(r *http.Request, allowedMethods []string) error {
	for _, method := range allowedMethods {
		if r.Method == method {
			return nil
		}
	}
	return fmt.Errorf("HTTP method '%s' is not supported, allowed: %s",
		r.Method, strings.Join(allowedMethods, ", "))
}
