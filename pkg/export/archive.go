package export

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ZipBundle writes named documents into a single ZIP stream.
type ZipBundle struct {
	zw    *zip.Writer
	names map[string]int
}

// NewZipBundle starts a ZIP archive on w. Close must be called to finish it.
func NewZipBundle(w io.Writer) *ZipBundle {
	return &ZipBundle{zw: zip.NewWriter(w), names: make(map[string]int)}
}

// Add stores payload under name. Repeated names receive a numeric suffix.
func (b *ZipBundle) Add(name string, payload []byte) (string, error) {
	entry := b.uniqueName(SafeFilename(name))
	fw, err := b.zw.Create(entry)
	if err != nil {
		return "", fmt.Errorf("create zip entry %s: %w", entry, err)
	}
	if _, err := fw.Write(payload); err != nil {
		return "", fmt.Errorf("write zip entry %s: %w", entry, err)
	}
	return entry, nil
}

// Close flushes the archive directory.
func (b *ZipBundle) Close() error {
	if err := b.zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func (b *ZipBundle) uniqueName(name string) string {
	count := b.names[name]
	b.names[name] = count + 1
	if count == 0 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(count+1) + ext
}

// SafeFilename strips characters that are unsafe in archive entry names.
func SafeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	return name
}
