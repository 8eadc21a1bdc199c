package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// 000001_create_credits.up.sql veya 20250808123045_add_index.up.sql
var migrationFilePattern = regexp.MustCompile(`^(\d{6}|\d{14})_([a-zA-Z0-9_]+)\.up\.sql$`)

// LoadMigrationsFromDisk migration klasöründeki .up.sql dosyalarını version sırasıyla okur
func (r *Runner) LoadMigrationsFromDisk() ([]Migration, error) {
	upFiles, err := filepath.Glob(filepath.Join(r.config.MigrationsPath, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("migration dosyaları bulunamadı: %w", err)
	}

	if len(upFiles) == 0 {
		log.Warn().
			Str("path", r.config.MigrationsPath).
			Msg("Hiç migration dosyası bulunamadı")
		return []Migration{}, nil
	}

	migrations := make([]Migration, 0, len(upFiles))
	seen := make(map[int64]string, len(upFiles))
	for _, upFile := range upFiles {
		m, err := parseMigrationFile(upFile)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[m.Version]; dup {
			return nil, fmt.Errorf("version %d iki kez tanımlı: %s ve %s", m.Version, other, filepath.Base(upFile))
		}
		seen[m.Version] = filepath.Base(upFile)
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFile tek bir migration dosyasını parse eder
func parseMigrationFile(upFilePath string) (Migration, error) {
	filename := filepath.Base(upFilePath)
	matches := migrationFilePattern.FindStringSubmatch(filename)
	if len(matches) != 3 {
		return Migration{}, fmt.Errorf("geçersiz migration dosya formatı: %s", filename)
	}

	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return Migration{}, fmt.Errorf("geçersiz version formatı %s: %w", matches[1], err)
	}

	upContent, err := os.ReadFile(upFilePath)
	if err != nil {
		return Migration{}, fmt.Errorf("UP dosyası okunamadı %s: %w", upFilePath, err)
	}

	return Migration{
		Version:     version,
		Name:        toTitleCase(strings.ReplaceAll(matches[2], "_", " ")),
		UpSQL:       string(upContent),
		UpChecksum:  calculateChecksum(upContent),
		Description: extractDescription(string(upContent)),
	}, nil
}

func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// extractDescription SQL dosyasının başındaki ilk yorum satırı
func extractDescription(sqlContent string) string {
	for _, line := range strings.Split(sqlContent, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if desc := strings.TrimSpace(strings.TrimPrefix(line, "--")); desc != "" {
			return desc
		}
	}
	return ""
}

// strings.Title deprecated olduğu için basit title-case
func toTitleCase(s string) string {
	parts := strings.Fields(strings.ToLower(s))
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
