package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/himanishpuri/tunebot/pkg/models"
)

// AuditLog appends one plain-text line per deleted channel song.
type AuditLog struct {
	mu   sync.Mutex
	path string
	tag  string
	now  func() time.Time
}

// NewAuditLog writes to path; tag is usually the corpus database file name.
func NewAuditLog(path, tag string) *AuditLog {
	return &AuditLog{path: path, tag: tag, now: time.Now}
}

func (a *AuditLog) Record(rec *models.SongRecord) error {
	if a == nil || a.path == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s - [%s] Deleted: %s - %s (ID:%d)\n",
		a.now().Format("2006-01-02 15:04:05"), a.tag, rec.Performer, rec.Title, rec.ID)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}
