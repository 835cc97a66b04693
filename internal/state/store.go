// Package state persists the typed handoff document the workflow phases
// share. The original scripts appended KEY=VALUE lines to a flat file and
// sourced it; this store keeps the same append-only intent but with named,
// typed fields and atomic writes, so a failed step can never leave a
// half-written key behind.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New(errors.CodeConfigValidation, "state document path cannot be empty")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document, returning a fresh empty one when the file does
// not exist yet (first provisioning run).
func (s *FileStore) Load(ctx context.Context) (*domain.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.Document{Version: domain.DocumentVersion}, nil
		}
		return nil, errors.Wrap(err, errors.CodeStateReadError,
			fmt.Sprintf("failed to read state document %s", s.path))
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeStateParseError,
			fmt.Sprintf("state document %s is not valid JSON", s.path))
	}
	if doc.Version > domain.DocumentVersion {
		return nil, errors.NewUserFacing(errors.CodeStateParseError,
			fmt.Sprintf("state document %s has version %d, this build understands up to %d", s.path, doc.Version, domain.DocumentVersion),
			"Upgrade the tool before touching this state document.")
	}
	return &doc, nil
}

// Save writes the document atomically: marshal, write a sibling temp file,
// rename over the target.
func (s *FileStore) Save(ctx context.Context, doc *domain.Document) error {
	doc.Version = domain.DocumentVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeStateWriteError, "failed to marshal state document")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeStateWriteError, "failed to create temp state file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeStateWriteError, "failed to write temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeStateWriteError, "failed to close temp state file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeStateWriteError,
			fmt.Sprintf("failed to replace state document %s", s.path))
	}
	return nil
}
