package storage

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/h2non/filetype"

	"github.com/malabook/mala/server/internal/gerrors"
)

const (
	MaxAvatarSize     = 5 * 1024 * 1024
	MaxSalonImageSize = 10 * 1024 * 1024
	// Uploads are stored as-is; anything larger than this per side is
	// expected to be resized by the client.
	MaxImageDimension = 4096
)

// Extension and sniffed type must agree. filetype reports "jpg" for
// both .jpg and .jpeg uploads.
var allowedImageTypes = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"png":  "png",
	"webp": "webp",
	"gif":  "gif",
}

// ValidateImage checks the filename extension, the magic bytes and the
// size cap. It returns the normalized extension (no dot) and the MIME
// type to upload with.
func ValidateImage(filename string, data []byte, maxSize int64) (string, string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	wantKind, ok := allowedImageTypes[ext]
	if !ok {
		return "", "", gerrors.Newf("File type not allowed. Allowed types: %s", allowedExtList())
	}
	if int64(len(data)) > maxSize {
		return "", "", gerrors.Newf("File too large. Maximum size: %s", humanize.Bytes(uint64(maxSize)))
	}
	if len(data) == 0 {
		return "", "", gerrors.New("File is empty")
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", "", gerrors.Wrapf(err, "sniff file type")
	}
	if kind.Extension != wantKind {
		return "", "", gerrors.Newf("File content does not match the %s extension", ext)
	}
	return ext, kind.MIME.Value, nil
}

func allowedExtList() string {
	exts := make([]string, 0, len(allowedImageTypes))
	for ext := range allowedImageTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
