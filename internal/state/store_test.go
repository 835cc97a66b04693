package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))
}

func TestLoadReturnsFreshDocumentWhenMissing(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentVersion, doc.Version)
	assert.Empty(t, doc.Project)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	doc := domain.NewDocument("proj", "us-east-1")
	doc.Network.VpcID = "vpc-0abc"
	doc.Network.PublicSubnetIDs = []string{"subnet-1", "subnet-2"}
	doc.Database.Endpoint = "db.example.amazonaws.com"
	doc.Release.ServiceARN = "arn:aws:ecs:us-east-1:123:service/svc"

	require.NoError(t, store.Save(context.Background(), doc))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(doc, loaded); diff != "" {
		t.Fatalf("document changed across save/load (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeStateParseError))
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeStateParseError))
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), domain.NewDocument("proj", "us-east-1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}
