package storage

import (
	"sync"

	"github.com/lehigh-university-libraries/datagen/internal/models"
)

// UploadIndex remembers the original name of every upload served by this
// process, keyed by served name.
type UploadIndex struct {
	uploads map[string]models.UploadedFile
	mu      sync.RWMutex
}

func NewUploadIndex() *UploadIndex {
	return &UploadIndex{
		uploads: make(map[string]models.UploadedFile),
	}
}

func (s *UploadIndex) Get(savedName string) (models.UploadedFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, exists := s.uploads[savedName]
	return f, exists
}

func (s *UploadIndex) Set(f models.UploadedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[f.SavedName] = f
}

func (s *UploadIndex) All() map[string]models.UploadedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]models.UploadedFile, len(s.uploads))
	for k, v := range s.uploads {
		result[k] = v
	}
	return result
}

func (s *UploadIndex) Delete(savedName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, savedName)
}
