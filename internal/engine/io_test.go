package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func length(n int64) *int64 {
	return &n
}

// readChunks returns the raw chunk rows for a path, ordered by offset.
func readChunks(t *testing.T, e *Engine, path string) [][2]int64 {
	t.Helper()
	ctx := t.Context()
	ino, err := e.resolve(ctx, path)
	require.NoError(t, err)
	chunks, err := e.db.ListChunks(ctx, ino)
	require.NoError(t, err)
	rows := make([][2]int64, len(chunks))
	for i, c := range chunks {
		rows[i] = [2]int64{c.Offset, c.Length}
		require.Equal(t, int64(0), c.Offset%e.chunkSize, "chunk offset must be aligned")
		require.LessOrEqual(t, c.Length, e.chunkSize, "chunk length must not exceed chunk size")
		require.Equal(t, c.Length, int64(len(c.Data)), "stored data must match length")
	}
	return rows
}

func TestWriteRead(t *testing.T) {
	t.Parallel()

	// chunk_size = 8 throughout, per testEngine.

	t.Run("single chunk round trip", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/a", MkdirOptions{}))
		require.NoError(t, e.WriteFile("/a/t", []byte("Buy milk")))

		data, err := e.ReadFile("/a/t")
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", string(data))

		attr, err := e.Stat("/a/t")
		require.NoError(t, err)
		assert.Equal(t, int64(8), attr.Size)

		assert.Equal(t, [][2]int64{{0, 8}}, readChunks(t, e, "/a/t"))
		requireAccounting(t, e)
	})

	t.Run("append across chunk boundaries", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/a", MkdirOptions{}))
		require.NoError(t, e.WriteFile("/a/t", []byte("Buy milk")))
		require.NoError(t, e.Write("/a/t", []byte("\nCall Alice"), WriteOptions{Offset: 8}))

		data, err := e.ReadFile("/a/t")
		require.NoError(t, err)
		assert.Equal(t, "Buy milk\nCall Alice", string(data))

		attr, err := e.Stat("/a/t")
		require.NoError(t, err)
		assert.Equal(t, int64(19), attr.Size)

		assert.Equal(t, [][2]int64{{0, 8}, {8, 8}, {16, 3}}, readChunks(t, e, "/a/t"))
		requireAccounting(t, e)
	})

	t.Run("ranged read inside one chunk", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/a", MkdirOptions{}))
		require.NoError(t, e.WriteFile("/a/t", []byte("Buy milk\nCall Alice")))

		data, err := e.Read("/a/t", ReadOptions{Offset: 4, Length: length(4)})
		require.NoError(t, err)
		assert.Equal(t, "milk", string(data))
	})

	t.Run("ranged read across chunk boundary", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("0123456789abcdef")))
		data, err := e.Read("/t", ReadOptions{Offset: 6, Length: length(4)})
		require.NoError(t, err)
		assert.Equal(t, "6789", string(data))
	})

	t.Run("read past end is zero-filled to requested length", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("abc")))
		data, err := e.Read("/t", ReadOptions{Offset: 0, Length: length(6)})
		require.NoError(t, err)
		assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0}, data)
	})

	t.Run("write auto-creates missing file", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Write("/t", []byte("hi"), WriteOptions{}))
		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, "hi", string(data))
	})

	t.Run("write propagates missing parent", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		assert.ErrorIs(t, e.Write("/missing/t", []byte("hi"), WriteOptions{}), ENOENT)
	})

	t.Run("interior overwrite keeps size", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("0123456789abcdef")))
		require.NoError(t, e.Write("/t", []byte("XY"), WriteOptions{Offset: 4}))

		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, "0123XY6789abcdef", string(data))

		attr, err := e.Stat("/t")
		require.NoError(t, err)
		assert.Equal(t, int64(16), attr.Size)
		requireAccounting(t, e)
	})

	t.Run("write exactly at chunk boundary", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("01234567")))
		require.NoError(t, e.Write("/t", []byte("89"), WriteOptions{Offset: 8}))

		assert.Equal(t, [][2]int64{{0, 8}, {8, 2}}, readChunks(t, e, "/t"))
		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(data))
	})

	t.Run("write straddling a chunk boundary", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("01234567")))
		require.NoError(t, e.Write("/t", []byte("abcd"), WriteOptions{Offset: 6}))

		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, "012345abcd", string(data))
		assert.Equal(t, [][2]int64{{0, 8}, {8, 2}}, readChunks(t, e, "/t"))
		requireAccounting(t, e)
	})

	t.Run("zero-length write is a no-op", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("abc")))
		require.NoError(t, e.Write("/t", nil, WriteOptions{Offset: 1}))

		attr, err := e.Stat("/t")
		require.NoError(t, err)
		assert.Equal(t, int64(3), attr.Size)
	})

	t.Run("write to a directory fails with EISDIR", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/d", MkdirOptions{}))
		assert.ErrorIs(t, e.Write("/d", []byte("x"), WriteOptions{}), EISDIR)
		_, err := e.ReadFile("/d")
		assert.ErrorIs(t, err, EISDIR)
	})
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	t.Run("truncate to zero removes all chunks", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("0123456789abcdef")))
		require.NoError(t, e.Truncate("/t", 0))

		attr, err := e.Stat("/t")
		require.NoError(t, err)
		assert.Equal(t, int64(0), attr.Size)
		assert.Empty(t, readChunks(t, e, "/t"))
		requireAccounting(t, e)
	})

	t.Run("truncate to exact chunk boundary", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("0123456789abcdef")))
		require.NoError(t, e.Truncate("/t", 8))

		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, "01234567", string(data))
		assert.Equal(t, [][2]int64{{0, 8}}, readChunks(t, e, "/t"))
		requireAccounting(t, e)
	})

	t.Run("truncate into the last chunk preserves the tail prefix", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("0123456789abcdef")))
		require.NoError(t, e.Truncate("/t", 11))

		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, "0123456789a", string(data))
		assert.Equal(t, [][2]int64{{0, 8}, {8, 3}}, readChunks(t, e, "/t"))
		requireAccounting(t, e)
	})

	t.Run("truncate beyond size extends sparsely", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("abc")))
		require.NoError(t, e.Truncate("/t", 10))

		attr, err := e.Stat("/t")
		require.NoError(t, err)
		assert.Equal(t, int64(10), attr.Size)

		data, err := e.ReadFile("/t")
		require.NoError(t, err)
		assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0, 0, 0, 0, 0}, data)

		// No chunks were stored for the extension.
		assert.Equal(t, [][2]int64{{0, 3}}, readChunks(t, e, "/t"))
	})

	t.Run("truncate a directory fails with EISDIR", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/d", MkdirOptions{}))
		assert.ErrorIs(t, e.Truncate("/d", 0), EISDIR)
	})

	t.Run("negative size fails with EINVAL", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/t", []byte("abc")))
		assert.ErrorIs(t, e.Truncate("/t", -1), EINVAL)
	})
}
