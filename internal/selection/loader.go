package selection

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// extensionTypes covers formats the content sniffer may not recognise.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
}

// Loader reads files from disk and turns them into Images. It plays the
// part of a file picker: it knows about paths, the Store does not.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load reads each path. A directory contributes its regular files (one
// level, sorted by name). Files of any type are returned; filtering is the
// Store's job.
func (l *Loader) Load(paths ...string) ([]Image, error) {
	var images []Image
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			img, err := l.readFile(p)
			if err != nil {
				return nil, err
			}
			images = append(images, img)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			img, err := l.readFile(filepath.Join(p, e.Name()))
			if err != nil {
				return nil, err
			}
			images = append(images, img)
		}
	}
	return images, nil
}

// Feed loads paths and hands the result to h, returning how many files were read.
func (l *Loader) Feed(h FilesAddedHandler, paths ...string) (int, error) {
	images, err := l.Load(paths...)
	if err != nil {
		return 0, err
	}
	h.OnFilesAdded(images)
	return len(images), nil
}

func (l *Loader) readFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	mimeType := DetectMIMEType(filepath.Base(path), data)
	log.Debug().Str("path", path).Str("mime_type", mimeType).Int("size_bytes", len(data)).Msg("Loaded file")

	return Image{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Data:     data,
	}, nil
}

// DetectMIMEType sniffs data, falling back to the filename extension when
// the content is not recognised.
func DetectMIMEType(name string, data []byte) string {
	detected := mimetype.Detect(data)
	if !detected.Is("application/octet-stream") {
		// Drop parameters such as "; charset=utf-8".
		mt, _, _ := strings.Cut(detected.String(), ";")
		return mt
	}
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return detected.String()
}
