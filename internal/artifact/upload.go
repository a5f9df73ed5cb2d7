// Package artifact manages the receipt and certificate registries. It
// validates incoming files, delegates the bytes to an external object store,
// and records only the canonical URL on the document. Registration is
// deliberately decoupled from status transitions: callers invoke the status
// machine as a separate step, and the read path reconciles if that second
// step never lands.
package artifact

import (
	"io"
	"mime"
	"path"
	"strings"

	dErrors "sevagate/pkg/domain-errors"
)

// MaxSize bounds artifact uploads at 5 MiB.
const MaxSize = 5 << 20

// Upload describes one incoming artifact file. Size must be the exact content
// length; handlers take it from the multipart part header.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// Validate enforces the file-kind and size rules shared by both registries.
func (u Upload) Validate() error {
	if u.Size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "artifact file is empty")
	}
	if u.Size > MaxSize {
		return dErrors.New(dErrors.CodeTooLarge, "artifact exceeds the 5 MiB limit")
	}
	if _, ok := allowedTypes[u.normalizedType()]; !ok {
		return dErrors.New(dErrors.CodeUnsupportedFile, "only jpeg, png, and pdf artifacts are accepted")
	}
	return nil
}

// extension returns the canonical extension for the upload's content type.
func (u Upload) extension() string {
	if ext, ok := allowedTypes[u.normalizedType()]; ok {
		return ext
	}
	return path.Ext(u.Filename)
}

func (u Upload) normalizedType() string {
	mediaType, _, err := mime.ParseMediaType(u.ContentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(u.ContentType))
	}
	return mediaType
}
