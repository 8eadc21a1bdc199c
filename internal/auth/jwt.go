package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/craiverse/credits-service/internal/models"
)

// DefaultIssuer servis ve creditsctl'in kullandığı iss claim'i
const DefaultIssuer = "craiverse-credits"

// Claims JWT payload'ını temsil eder. Subject son kullanıcı ID'si ya da uygulama adıdır.
type Claims struct {
	Role  string `json:"role"`
	AppID string `json:"app_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal claim'lerden çağıranı üretir
func (c *Claims) Principal() *models.Principal {
	return &models.Principal{Subject: c.Subject, Role: c.Role, AppID: c.AppID}
}

// Manager HS256 token üretir ve doğrular
type Manager struct {
	secret []byte
	issuer string
}

// NewManager yeni manager oluşturur
func NewManager(secret, issuer string) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer}
}

// GenerateToken subject için token oluşturur
func (m *Manager) GenerateToken(subject, role, appID string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject boş olamaz")
	}
	if role != models.RoleUser && role != models.RoleService {
		return "", fmt.Errorf("geçersiz rol: %s", role)
	}

	now := time.Now()
	claims := &Claims{
		Role:  role,
		AppID: appID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token oluşturulamadı: %w", err)
	}
	return tokenString, nil
}

// ValidateToken JWT token'ını doğrular ve claims'i döner
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token parse edilemedi: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("geçersiz token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject içermiyor")
	}
	if claims.Role != models.RoleUser && claims.Role != models.RoleService {
		return nil, fmt.Errorf("geçersiz rol: %q", claims.Role)
	}
	return claims, nil
}
