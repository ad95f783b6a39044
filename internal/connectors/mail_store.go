package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"luma/internal"
	"luma/internal/storage"
)

// MailStoreService persists fetched invoice emails: raw bytes on disk
// under their content hash, one uploads row per message. Refetching the
// same message is a no-op thanks to the hash key.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.UploadRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.UploadRow{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.UploadRow{}, err
		}
	}

	return s.db.UpsertUpload(internal.UploadRow{
		FileName:   sanitizeSubject(msg.Subject) + ".eml",
		Kind:       string(internal.SourceEmail),
		Hash:       hash,
		Status:     "received",
		RawRef:     rawPath,
		ReceivedAt: msg.ReceivedAt,
		Provider:   msg.Provider,
		MessageID:  msg.MessageID,
	})
}

func sanitizeSubject(subject string) string {
	out := make([]rune, 0, len(subject))
	for _, r := range subject {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "message"
	}
	if len(out) > 80 {
		out = out[:80]
	}
	return string(out)
}
