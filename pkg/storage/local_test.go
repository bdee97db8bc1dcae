package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_ReadWrite(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "items/a.yaml", []byte("id: a")))

	data, err := s.Read(ctx, "items/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "id: a", string(data))

	// Overwrites replace the whole document.
	require.NoError(t, s.Write(ctx, "items/a.yaml", []byte("id: a2")))
	data, err = s.Read(ctx, "items/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "id: a2", string(data))
}

func TestLocalStorage_ReadMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "missing.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorage_Exists(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "items/a.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Write(ctx, "items/a.yaml", []byte("x")))
	ok, err = s.Exists(ctx, "items/a.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalStorage_Delete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "items/a.yaml", []byte("x")))
	require.NoError(t, s.Delete(ctx, "items/a.yaml"))

	_, err = s.Read(ctx, "items/a.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorage_List(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "items/a.yaml", []byte("a")))
	require.NoError(t, s.Write(ctx, "items/b.yaml", []byte("b")))
	require.NoError(t, s.Write(ctx, "other/c.yaml", []byte("c")))

	// A leftover temp file from an interrupted write is not a document.
	require.NoError(t, os.WriteFile(filepath.Join(s.baseDir, "items", "d.yaml.tmp"), []byte("d"), 0o644))

	paths, err := s.List(ctx, "items")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"items/a.yaml", "items/b.yaml"}, paths)

	// An unknown prefix is an empty listing, not an error.
	paths, err = s.List(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLocalStorage_ExpiredContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), "items/a.yaml", []byte("x")))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	// A spent deadline must surface from every operation, not be ignored.
	_, err = s.Read(ctx, "items/a.yaml")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(s.Write(ctx, "items/a.yaml", []byte("y")), context.DeadlineExceeded))
	assert.True(t, errors.Is(s.Delete(ctx, "items/a.yaml"), context.DeadlineExceeded))
	_, err = s.List(ctx, "items")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	_, err = s.Exists(ctx, "items/a.yaml")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// The document is untouched.
	data, err := s.Read(context.Background(), "items/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestKeyLock(t *testing.T) {
	l := NewKeyLock()

	const workers = 16
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("shared")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, workers, counter)
}

func TestKeyLock_IndependentKeys(t *testing.T) {
	l := NewKeyLock()

	unlockA := l.Lock("a")

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()
	<-done

	unlockA()

	// The same key is reacquirable after unlock.
	unlock := l.Lock("a")
	unlock()
}
