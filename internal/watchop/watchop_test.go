package watchop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipeplets/percy-cli/internal/netwatch"
)

func TestMemoryStoreCreateGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	w, err := s.Create("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, w.Status)
	assert.NotEmpty(t, w.ID)

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.Get("missing")
	assert.Error(t, err)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	w, err := s.Create("https://example.com")
	require.NoError(t, err)

	require.NoError(t, s.MarkRunning(w.ID))
	got, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)

	stats := netwatch.Stats{RequestsSeen: 3, ResourcesCaptured: 2}
	require.NoError(t, s.MarkComplete(w.ID, stats, false, []Artefact{{Name: "manifest"}}))

	got, err = s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, stats, got.Stats)
	assert.Len(t, got.Artefacts, 1)
}

func TestMemoryStoreMarkFailed(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	w, err := s.Create("https://example.com")
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(w.ID, errors.New("boom")))

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	w, err := s.Create("https://example.com")
	require.NoError(t, err)

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	got.Status = StatusFailed

	again, err := s.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestMemoryStoreUnknownIDOnMutation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	assert.Error(t, s.MarkRunning("missing"))
	assert.Error(t, s.MarkFailed("missing", errors.New("x")))
	assert.Error(t, s.MarkComplete("missing", netwatch.Stats{}, false, nil))
}
