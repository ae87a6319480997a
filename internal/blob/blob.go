package blob

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// URLPrefix is the path uploads are served under.
const URLPrefix = "/uploads/"

// FileInfo describes a stored blob.
type FileInfo struct {
	// Ref is the retrieval path embedded in the message.
	Ref  string
	Type string
	Name string
}

// Store writes uploaded blobs to a directory on disk. Stored names are
// prefixed with a millisecond timestamp so uploads of the same filename
// do not collide.
type Store struct {
	dir string
	log *log.Logger
}

func NewStore(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Store{dir: dir, log: logger}, nil
}

// Dir returns the directory blobs are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save decodes a base64-encoded blob and writes it under a generated
// unique name. When declaredType is empty the content type is sniffed
// from the decoded bytes.
func (s *Store) Save(encoded, filename, declaredType string) (FileInfo, error) {
	data, err := base64.StdEncoding.DecodeString(stripDataURI(encoded))
	if err != nil {
		return FileInfo{}, fmt.Errorf("decode file: %w", err)
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(filename))
	dest := filepath.Join(s.dir, name)

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return FileInfo{}, fmt.Errorf("write file: %w", err)
	}

	fileType := declaredType
	if fileType == "" {
		fileType = mimetype.Detect(data).String()
	}

	s.log.Printf("stored %q (%d bytes) as %q", filename, len(data), name)

	return FileInfo{
		Ref:  path.Join(URLPrefix, name),
		Type: fileType,
		Name: filename,
	}, nil
}

// stripDataURI drops a leading "data:...;base64," marker, which browser
// FileReader output carries.
func stripDataURI(encoded string) string {
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i != -1 {
			return encoded[i+1:]
		}
	}

	return encoded
}

// sanitizeFilename reduces a client-supplied filename to its final path
// element so it cannot escape the upload directory.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == "" {
		return "file"
	}

	return base
}
