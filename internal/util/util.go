package util

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/jgivc/browsersync/internal/common"
)

const (
	griTypeFile      = "file"
	griInstanceScope = "instance:private"
	griSeparator     = "."
)

func GetIDFromString(str *string) string {
	hasher := sha1.New()
	hasher.Write([]byte(*str))

	return hex.EncodeToString(hasher.Sum(nil))
}

// FileIDFromPath encodes a slash separated path relative to the space root.
func FileIDFromPath(p string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(path.Clean("/" + p)))
}

func PathFromFileID(id string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("cannot decode file id %s: %w", id, common.ErrInvalidGRI)
	}

	p := string(data)
	if !strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return "", fmt.Errorf("bad file path in id %s: %w", id, common.ErrInvalidGRI)
	}

	return p, nil
}

// FileGRI builds file.<id>.instance:private.
func FileGRI(id string) string {
	return strings.Join([]string{griTypeFile, id, griInstanceScope}, griSeparator)
}

func FileIDFromGRI(gri string) (string, error) {
	parts := strings.SplitN(gri, griSeparator, 3)
	if len(parts) != 3 || parts[0] != griTypeFile || parts[1] == "" {
		return "", fmt.Errorf("cannot parse %q: %w", gri, common.ErrInvalidGRI)
	}

	return parts[1], nil
}

func PathFromGRI(gri string) (string, error) {
	id, err := FileIDFromGRI(gri)
	if err != nil {
		return "", err
	}

	return PathFromFileID(id)
}

func GRIFromPath(p string) string {
	return FileGRI(FileIDFromPath(p))
}
