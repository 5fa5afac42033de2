package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SupportedImageExtensions are the photo formats the pipeline decodes.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the file name without its extension.
	Name string
	// Data is the raw bytes of the image file.
	Data []byte
}

// IsSupportedImage reports whether the path has a supported photo extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedImageExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// LoadImageFile reads one photo, checking its extension and size.
//
// Arguments:
// - path: Path to the image file.
// - maxBytes: Size limit; zero or negative disables the check.
//
// Returns:
// - ImageFile: The loaded file.
// - error: Error if the file is missing, unsupported, too large or unreadable.
func LoadImageFile(path string, maxBytes int64) (ImageFile, error) {
	if !IsSupportedImage(path) {
		return ImageFile{}, errors.Errorf("unsupported file extension %q, supported: %v",
			filepath.Ext(path), SupportedImageExtensions)
	}
	info, err := os.Stat(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "stat %s", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return ImageFile{}, errors.Errorf("%s is %d bytes, limit %d", path, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "read %s", path)
	}
	base := filepath.Base(path)
	return ImageFile{
		Path: path,
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Data: data,
	}, nil
}

// LoadDirectoryImageFiles reads all photos from a directory, sorted by file
// name. Subdirectories and files with other extensions are skipped.
//
// Arguments:
// - dir: Directory path containing image files.
// - maxBytes: Per-file size limit; zero or negative disables the check.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string, maxBytes int64) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	files := []ImageFile{}
	for _, entry := range entries {
		if entry.IsDir() || !IsSupportedImage(entry.Name()) {
			continue
		}
		f, err := LoadImageFile(filepath.Join(dir, entry.Name()), maxBytes)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}
