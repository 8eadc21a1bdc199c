package errors

// ErrorConfig recovery middleware ayarları
type ErrorConfig struct {
	ShowStackTrace  bool           // Stack trace'i response'da göster mi (sadece development)
	CustomErrorMap  map[int]string // Status code'a göre custom mesajlar
	IncludeHeaders  []string       // Panic sonrası korunacak header'lar
	EnablePanicLogs bool           // Panic stack trace'ini logla
	MaxErrorLength  int            // Error mesajının maksimum uzunluğu
}

// DefaultErrorConfig varsayılan ayarlar
func DefaultErrorConfig() *ErrorConfig {
	return &ErrorConfig{
		ShowStackTrace: false,
		CustomErrorMap: map[int]string{
			400: "Invalid request. Please check your parameters.",
			401: "Authentication required.",
			403: "You are not allowed to perform this action.",
			404: "The requested resource was not found.",
			429: "Too many requests. Please try again later.",
			500: "Internal server error. The team has been notified.",
			503: "Service temporarily unavailable. Please try again later.",
		},
		IncludeHeaders:  []string{"X-Request-Id", "X-Ratelimit-Remaining"},
		EnablePanicLogs: true,
		MaxErrorLength:  500,
	}
}

// DevelopmentErrorConfig development ortamı için ayarlar
func DevelopmentErrorConfig() *ErrorConfig {
	config := DefaultErrorConfig()
	config.ShowStackTrace = true
	config.MaxErrorLength = 2000
	return config
}

// ProductionErrorConfig production ortamı için güvenli ayarlar
func ProductionErrorConfig() *ErrorConfig {
	config := DefaultErrorConfig()
	config.ShowStackTrace = false
	config.MaxErrorLength = 200
	return config
}
