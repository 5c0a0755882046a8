package storage

import (
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// AllowedImageTypes are the raster formats accepted for upload. Vector
// formats are refused since they can carry scripts.
var AllowedImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// DiskBlobStore keeps uploaded images on the local disk and serves them
// back under urlPrefix.
type DiskBlobStore struct {
	log       *slog.Logger
	dir       string
	urlPrefix string
	maxBytes  int
}

func NewDiskBlobStore(log *slog.Logger, dir, urlPrefix string, maxBytes int) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory %s: %w", dir, err)
	}
	return &DiskBlobStore{log: log, dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/"), maxBytes: maxBytes}, nil
}

// Upload sniffs the content, refuses anything that is not an image and
// writes it under a fresh name. The returned reference is a URL path.
// The file is fsynced before returning, so a message never points to a
// half written image.
func (s *DiskBlobStore) Upload(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUploadFailed, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty image", errors.ErrValidation)
	}
	if s.maxBytes > 0 && len(raw) > s.maxBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", errors.ErrValidation, s.maxBytes)
	}

	mime := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mime.String(), AllowedImageTypes...) {
		return "", fmt.Errorf("%w: unsupported content type %s", errors.ErrValidation, mime.String())
	}

	name := uuid.NewString() + mime.Extension()
	if err := writeFileSync(filepath.Join(s.dir, name), raw); err != nil {
		s.log.Error("Image upload failed", "error", err)
		return "", fmt.Errorf("%w: %v", errors.ErrUploadFailed, err)
	}
	s.log.Debug("Image stored", "name", name, "mime", mime.String(), "size", len(raw))
	return path.Join(s.urlPrefix, name), nil
}

// IsReference reports whether ref names an image this store holds.
// Only flat names are accepted, so a reference can never leave dir.
func (s *DiskBlobStore) IsReference(ref string) bool {
	name, ok := strings.CutPrefix(ref, s.urlPrefix+"/")
	if !ok || name == "" || name != path.Clean(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".part") {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && info.Mode().IsRegular()
}

func writeFileSync(name string, data []byte) error {
	tmp := name + ".part"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}
