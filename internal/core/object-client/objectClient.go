package objectclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/RepoScribe/internal/core"
)

var (
	// ErrArchiveDisabled is returned when no bucket is configured.
	ErrArchiveDisabled = errors.New("export archive is not configured")
	ErrObjectNotFound  = errors.New("object not found")
)

const markdownType = "text/markdown; charset=utf-8"

// Archive stores rendered documentation exports under
// exports/<owner>/<record id>/<file name>.
type Archive struct {
	store  core.ObjectClient
	bucket string
}

// NewArchive returns an Archive; a nil store or empty bucket gives a disabled one.
func NewArchive(store core.ObjectClient, bucket string) *Archive {
	return &Archive{store: store, bucket: bucket}
}

func (a *Archive) Enabled() bool {
	return a != nil && a.store != nil && a.bucket != ""
}

// PutMarkdown uploads a rendered export and returns its URL.
func (a *Archive) PutMarkdown(ctx context.Context, owner, recordID, fileName string, body []byte) (string, error) {
	if !a.Enabled() {
		return "", ErrArchiveDisabled
	}
	url, err := a.store.UploadFile(ctx, a.bucket, ExportKey(owner, recordID, fileName), body, markdownType)
	if err != nil {
		return "", fmt.Errorf("archive export %s: %w", recordID, err)
	}
	return url, nil
}

// GetMarkdown reads a previously archived export.
func (a *Archive) GetMarkdown(ctx context.Context, owner, recordID, fileName string) ([]byte, error) {
	if !a.Enabled() {
		return nil, ErrArchiveDisabled
	}
	body, err := a.store.GetFile(ctx, a.bucket, ExportKey(owner, recordID, fileName))
	if err != nil {
		return nil, fmt.Errorf("read archived export %s: %w", recordID, err)
	}
	return body, nil
}

// RemoveMarkdown deletes an archived export. A disabled archive has nothing
// to remove.
func (a *Archive) RemoveMarkdown(ctx context.Context, owner, recordID, fileName string) error {
	if !a.Enabled() {
		return nil
	}
	if err := a.store.DeleteFile(ctx, a.bucket, ExportKey(owner, recordID, fileName)); err != nil {
		return fmt.Errorf("remove archived export %s: %w", recordID, err)
	}
	return nil
}

// ExportKey builds the object key for an export. Path separators and other
// unsafe characters in the parts are replaced.
func ExportKey(owner, recordID, fileName string) string {
	return strings.Join([]string{"exports", keyPart(owner), keyPart(recordID), keyPart(fileName)}, "/")
}

func keyPart(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, s)
}
