package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_StableAndSeparated(t *testing.T) {
	a := Key("embed", "openai", "model", "text")
	assert.Equal(t, a, Key("embed", "openai", "model", "text"))
	assert.NotEqual(t, a, Key("embed", "openai", "modeltext"))
	assert.NotEqual(t, a, Key("judge", "openai", "model", "text"))
	assert.True(t, strings.HasPrefix(a, "reqmap:v1:embed:"))
	assert.Equal(t, "reqmap:v1:a_b:", Key("a/b")[:len("reqmap:v1:a_b:")])
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	f, ok := DecodeFloat(EncodeFloat(0.125))
	assert.True(t, ok)
	assert.Equal(t, 0.125, f)
}

func TestDiskCache_ExpiryAndCorruption(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("embed", "x")
	require.NoError(t, c.Set(key, []byte("value"), 0))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, c.Set(key, []byte("stale"), -time.Second))
	_, ok = c.Get(key)
	assert.False(t, ok, "expired entries are not returned")

	require.NoError(t, os.WriteFile(filepath.Join(dir, sanitize(key)+".cache"), []byte("{broken"), 0644))
	_, ok = c.Get(key)
	assert.False(t, ok)

	assert.NoError(t, c.Delete(key), "deleting a missing key is not an error")
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	first := NewLayeredCache(time.Minute, dir, time.Hour)
	require.NoError(t, first.Set("k", []byte("v"), 0))

	// A fresh process shares only the disk layer
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	mem := second.memory.(*MemoryCache)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, second.Clear())
	_, ok = second.Get("k")
	assert.False(t, ok)
}

func TestNew_MemoryOnlyWithoutDir(t *testing.T) {
	c := New(time.Minute, "", time.Hour)
	_, isMemory := c.(*MemoryCache)
	assert.True(t, isMemory)
}
