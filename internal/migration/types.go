package migration

import (
	"path/filepath"
	"time"
)

// HealthStatus migration sisteminin genel sağlık durumunu belirtir
type HealthStatus string

const (
	StatusHealthy HealthStatus = "healthy" // Tüm migration'lar uygulanmış
	StatusWarning HealthStatus = "warning" // Pending migration'lar var
	StatusError   HealthStatus = "error"   // Checksum uyuşmazlığı
)

// Migration tek bir veritabanı migration'ını temsil eder
type Migration struct {
	Version     int64      `json:"version"`
	Name        string     `json:"name"`
	UpSQL       string     `json:"-"`
	Applied     bool       `json:"applied"`
	AppliedAt   *time.Time `json:"appliedAt,omitempty"`
	UpChecksum  string     `json:"upChecksum"`
	Description string     `json:"description,omitempty"`
	Dirty       bool       `json:"dirty,omitempty"` // Uygulandıktan sonra dosya değişmiş
}

// MigrationStatus migration sisteminin genel durumunu gösterir
type MigrationStatus struct {
	CurrentVersion int64        `json:"currentVersion"`
	Migrations     []Migration  `json:"migrations"`
	TotalCount     int          `json:"totalCount"`
	AppliedCount   int          `json:"appliedCount"`
	PendingCount   int          `json:"pendingCount"`
	LastAppliedAt  *time.Time   `json:"lastAppliedAt,omitempty"`
	SystemHealth   HealthStatus `json:"systemHealth"`
	ErrorCount     int          `json:"errorCount"`
}

// MigrationResult bir migration işleminin sonucunu tutar
type MigrationResult struct {
	Success       bool          `json:"success"`
	Version       int64         `json:"version"`
	Name          string        `json:"name"`
	ExecutionTime time.Duration `json:"executionTime"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
}

// MigrationConfig migration ayarlarını tutar
type MigrationConfig struct {
	MigrationsPath     string        // Migration dosyalarının yolu
	TableName          string        // Takip tablosu adı
	ValidateChecksums  bool          // Uygulanmış dosya değişmişse dur
	TransactionTimeout time.Duration // Migration başına timeout
	DryRun             bool          // Sadece listele, uygulama
	Verbose            bool
}

// DefaultConfig varsayılan ayarları döner
func DefaultConfig() *MigrationConfig {
	absPath, err := filepath.Abs("./migrations")
	if err != nil {
		absPath = "./migrations"
	}

	return &MigrationConfig{
		MigrationsPath:     absPath,
		TableName:          "schema_migrations",
		ValidateChecksums:  true,
		TransactionTimeout: 5 * time.Minute,
		DryRun:             false,
		Verbose:            false,
	}
}

// CLIConfig creditsctl için ayarlar
func CLIConfig(path string) *MigrationConfig {
	c := DefaultConfig()
	if path != "" {
		c.MigrationsPath = path
	}
	c.Verbose = true
	return c
}
