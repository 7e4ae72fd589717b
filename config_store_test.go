package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewConfigStore()
	store.Set(ConfigVersion, "foo")
	store.Set(ConfigAudioIn, "bar")
	store.Set(ConfigAudioOut, "baz")

	require.NoError(t, store.Save(dir, "test.conf"))

	store.Clear()
	assert.Empty(t, store.Get(ConfigVersion))
	assert.Empty(t, store.Get(ConfigAudioIn))
	assert.Empty(t, store.Get(ConfigAudioOut))

	require.NoError(t, store.Load(dir, "test.conf"))

	assert.Equal(t, "foo", store.Get(ConfigVersion))
	assert.Equal(t, "bar", store.Get(ConfigAudioIn))
	assert.Equal(t, "baz", store.Get(ConfigAudioOut))
}

func TestConfigStoreUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.conf")

	contents := "version: 1.0\nbogus_key: nonsense\naudio_in: mic\nnot a record at all\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	store := NewConfigStore()
	require.NoError(t, store.Load("", path))

	assert.Equal(t, "1.0", store.Get(ConfigVersion))
	assert.Equal(t, "mic", store.Get(ConfigAudioIn))
	assert.Empty(t, store.Get(ConfigAudioOut))
}

func TestConfigStoreSavesOnlyPresentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.conf")

	store := NewConfigStore()
	store.Set(ConfigAudioIn, "mic")
	require.NoError(t, store.Save("", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "audio_in: mic\n", string(data))
}

func TestConfigStoreLoadMissing(t *testing.T) {
	store := NewConfigStore()
	assert.Error(t, store.Load(t.TempDir(), "absent.conf"))
}

func TestCheckStoreVersion(t *testing.T) {
	store := NewConfigStore()

	// empty store gets stamped
	require.NoError(t, checkStoreVersion(store))
	assert.Equal(t, Version, store.Get(ConfigVersion))

	// same and older versions load
	store.Set(ConfigVersion, "1.0.0")
	assert.NoError(t, checkStoreVersion(store))

	// a newer major version is refused
	store.Set(ConfigVersion, "99.0.0")
	assert.Error(t, checkStoreVersion(store))

	// garbage is refused
	store.Set(ConfigVersion, "not-a-version")
	assert.Error(t, checkStoreVersion(store))
}
