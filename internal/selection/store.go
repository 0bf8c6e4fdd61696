// Package selection holds the ordered batch of images chosen for a run.
package selection

import (
	"strings"
	"sync"
)

// Image is a selected file: its payload, original filename and MIME type.
// Images have no identity beyond their position in a Store.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// FilesAddedHandler receives batches of files from an input source.
type FilesAddedHandler interface {
	OnFilesAdded(files []Image)
}

// Store is an append-only, ordered list of images.
// Duplicates are kept; nothing is ever removed.
type Store struct {
	mu     sync.RWMutex
	images []Image
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// IsImage reports whether mimeType names an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// AddFiles appends the image entries of files in order and returns how many
// were kept. Non-image entries are dropped without error.
func (s *Store) AddFiles(files ...Image) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, f := range files {
		if !IsImage(f.MIMEType) {
			continue
		}
		s.images = append(s.images, f)
		added++
	}
	return added
}

// OnFilesAdded implements FilesAddedHandler.
func (s *Store) OnFilesAdded(files []Image) {
	s.AddFiles(files...)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// First returns the earliest selected image, used for previews.
func (s *Store) First() (Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.images) == 0 {
		return Image{}, false
	}
	return s.images[0], true
}

// Images returns a copy of the selection in insertion order.
func (s *Store) Images() []Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Image, len(s.images))
	copy(out, s.images)
	return out
}
