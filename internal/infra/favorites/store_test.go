package favorites

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavehop/wavehop/internal/domain/station"
)

func testStation(id, name string) station.Station {
	return station.Station{
		ID:      id,
		Name:    name,
		Country: "Iceland",
		Tags:    []string{"ambient", "chill"},
		URL:     "https://" + id + ".example.com/stream",
	}
}

func TestAddContainsRemove(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "fav.db"))
	require.NoError(t, err)
	defer store.Close()

	ok, err := store.Contains("s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(testStation("s1", "Station One")))

	ok, err = store.Contains("s1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Remove("s1"))

	ok, err = store.Contains("s1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent favorite is a no-op.
	assert.NoError(t, store.Remove("s1"))
}

func TestAdd_RequiresID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "fav.db"))
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Add(station.Station{Name: "anonymous"}))
}

func TestAdd_ReplacesExisting(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "fav.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Add(testStation("s1", "Old Name")))
	require.NoError(t, store.Add(testStation("s1", "New Name")))

	favs, err := store.List()
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "New Name", favs[0].Station.Name)
}

func TestList_PreservesStationFields(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "fav.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Add(testStation("s1", "Station One")))
	require.NoError(t, store.Add(testStation("s2", "Station Two")))

	favs, err := store.List()
	require.NoError(t, err)
	require.Len(t, favs, 2)

	first := favs[0].Station
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, "Station One", first.Name)
	assert.Equal(t, "Iceland", first.Country)
	assert.Equal(t, []string{"ambient", "chill"}, first.Tags)
	assert.Equal(t, "https://s1.example.com/stream", first.StreamURL())
	assert.False(t, favs[0].CreatedAt.IsZero())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fav.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Add(testStation("s1", "Station One")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.Contains("s1")
	require.NoError(t, err)
	assert.True(t, ok)
}
