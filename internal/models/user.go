package models

// Roller
const (
	RoleUser    = "user"
	RoleService = "service"
)

// Principal kimliği doğrulanmış çağıran (son kullanıcı veya bir CRAIverse uygulaması)
type Principal struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	AppID   string `json:"app_id,omitempty"`
}

// IsService servis token'ı mı
func (p *Principal) IsService() bool {
	return p != nil && p.Role == RoleService
}

// CanActOn kullanıcının verilen userID üzerinde işlem yapıp yapamayacağını söyler
func (p *Principal) CanActOn(userID string) bool {
	if p == nil {
		return false
	}
	if p.IsService() {
		return true
	}
	return p.Subject != "" && p.Subject == userID
}
