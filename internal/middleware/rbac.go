package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/models"
)

// Permission represents a specific permission
type Permission string

const (
	PermReadCredits   Permission = "credits:read"
	PermCheckCredits  Permission = "credits:check"
	PermDeductCredits Permission = "credits:deduct"
	PermAddCredits    Permission = "credits:add"
	PermRefundCredits Permission = "credits:refund"
)

// RolePermissions defines permissions for each role. Kullanıcı rolü izinleri
// sadece kendi hesabı için geçerlidir.
var RolePermissions = map[string][]Permission{
	models.RoleUser: {
		PermReadCredits,
		PermCheckCredits,
		PermDeductCredits,
	},
	models.RoleService: {
		PermReadCredits,
		PermCheckCredits,
		PermDeductCredits,
		PermAddCredits,
		PermRefundCredits,
	},
}

// HasPermission checks if role has specific permission
func HasPermission(role string, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// Authorize principal'ın userID hesabı üzerinde permission'ı kullanıp
// kullanamayacağını kontrol eder
func Authorize(principal *models.Principal, permission Permission, userID string) error {
	if principal == nil {
		return &errors.AuthError{Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	}

	if !HasPermission(principal.Role, permission) || !principal.CanActOn(userID) {
		log.Warn().
			Str("subject", principal.Subject).
			Str("role", principal.Role).
			Str("required_permission", string(permission)).
			Str("target_user", userID).
			Msg("RBAC: Access denied")

		return &errors.RBACError{
			Message:    "You are not allowed to perform this action",
			StatusCode: http.StatusForbidden,
			Resource:   userID,
			Action:     string(permission),
		}
	}

	return nil
}
