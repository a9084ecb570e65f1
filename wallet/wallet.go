// Package wallet persists per-user wallet credential blobs. Blobs are
// opaque to the bot; the only rule is write-once per user.
package wallet

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/internal/fsstore"
)

type Store interface {
	Load(userID string) ([]byte, bool, error)
	// Save persists the blob for userID. It is a no-op when a blob already
	// exists for that user.
	Save(userID string, blob []byte) error
}

type record struct {
	UserID     string    `json:"user_id"`
	BlobBase64 string    `json:"blob_base64"`
	CreatedAt  time.Time `json:"created_at"`
}

type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: strings.TrimSpace(dir)}
}

func (s *FileStore) Load(userID string) ([]byte, bool, error) {
	path, err := s.recordPath(userID)
	if err != nil {
		return nil, false, err
	}
	var rec record
	ok, err := fsstore.ReadJSON(path, &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	blob, err := base64.StdEncoding.DecodeString(rec.BlobBase64)
	if err != nil {
		return nil, false, fmt.Errorf("wallet blob for %s: %w", userID, err)
	}
	return blob, true, nil
}

func (s *FileStore) Save(userID string, blob []byte) error {
	path, err := s.recordPath(userID)
	if err != nil {
		return err
	}
	var existing record
	ok, err := fsstore.ReadJSON(path, &existing)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	rec := record{
		UserID:     userID,
		BlobBase64: base64.StdEncoding.EncodeToString(blob),
		CreatedAt:  time.Now().UTC(),
	}
	return fsstore.WriteJSONAtomic(path, rec)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// recordPath maps a user id to a file directly inside the store directory.
// Ids may contain path separators or other hostile characters, so everything
// outside a conservative set is replaced before the path is built.
func (s *FileStore) recordPath(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("wallet: empty user id")
	}
	name := unsafeFilenameChars.ReplaceAllString(userID, "_")
	if name == "." || name == ".." || !filepath.IsLocal(name) {
		return "", fmt.Errorf("wallet: invalid user id %q", userID)
	}
	return filepath.Join(s.dir, name+".json"), nil
}
