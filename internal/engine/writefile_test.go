package engine

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader yields its buffers one Read call at a time, mimicking
// a pull-based upload stream of arbitrary buffer sizes.
type chunkedReader struct {
	bufs [][]byte
	err  error // returned after the buffers are exhausted, instead of EOF
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.bufs) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.bufs[0])
	if n < len(r.bufs[0]) {
		r.bufs[0] = r.bufs[0][n:]
	} else {
		r.bufs = r.bufs[1:]
	}
	return n, nil
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		payload := []byte("The quick brown fox jumps over the lazy dog")
		require.NoError(t, e.WriteFile("/f", payload))

		data, err := e.ReadFile("/f")
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("replaces existing content entirely", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/f", []byte("a much longer initial payload")))
		require.NoError(t, e.WriteFile("/f", []byte("tiny")))

		data, err := e.ReadFile("/f")
		require.NoError(t, err)
		assert.Equal(t, "tiny", string(data))
		assert.Equal(t, int64(4), spaceUsed(t, e))
		requireAccounting(t, e)
	})

	t.Run("writes empty file", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFile("/f", nil))
		attr, err := e.Stat("/f")
		require.NoError(t, err)
		assert.Equal(t, int64(0), attr.Size)

		data, err := e.ReadFile("/f")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("string convenience wrapper", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.WriteFileString("/f", "hello"))
		data, err := e.ReadFile("/f")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("fails with EISDIR on a directory", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/d", MkdirOptions{}))
		assert.ErrorIs(t, e.WriteFile("/d", []byte("x")), EISDIR)
	})
}

func TestWriteFileFrom(t *testing.T) {
	t.Parallel()

	t.Run("streams buffers of arbitrary size", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		src := &chunkedReader{bufs: [][]byte{
			[]byte("012"),
			[]byte("3456789abcde"),
			[]byte("f"),
		}}
		written, err := e.WriteFileFrom("/f", src)
		require.NoError(t, err)
		assert.Equal(t, int64(16), written)

		data, err := e.ReadFile("/f")
		require.NoError(t, err)
		assert.Equal(t, "0123456789abcdef", string(data))
		requireAccounting(t, e)
	})

	t.Run("tempfile-then-rename upload idiom", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.Mkdir("/a", MkdirOptions{}))
		require.NoError(t, e.WriteFile("/a/t", []byte("0123456789abcdefghi"))) // 19 bytes

		src := &chunkedReader{bufs: [][]byte{
			bytes.Repeat([]byte("x"), 8),
			bytes.Repeat([]byte("y"), 8),
			bytes.Repeat([]byte("z"), 8),
		}}
		written, err := e.WriteFileFrom("/a/t.uploading", src)
		require.NoError(t, err)
		assert.Equal(t, int64(24), written)

		require.NoError(t, e.Rename("/a/t.uploading", "/a/t"))

		data, err := e.ReadFile("/a/t")
		require.NoError(t, err)
		assert.Len(t, data, 24)

		// The prior 19-byte file's chunks were reclaimed.
		assert.Equal(t, int64(24), spaceUsed(t, e))
		requireAccounting(t, e)
	})

	t.Run("quota is enforced per pulled buffer", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.SetDeviceSize(16))
		src := &chunkedReader{bufs: [][]byte{
			bytes.Repeat([]byte("a"), 8),
			bytes.Repeat([]byte("b"), 8),
			bytes.Repeat([]byte("c"), 8),
		}}
		written, err := e.WriteFileFrom("/f", src)
		assert.ErrorIs(t, err, ENOSPC)
		assert.Equal(t, int64(16), written)

		// The partial file stays in place with the bytes that made it
		// through.
		data, readErr := e.ReadFile("/f")
		require.NoError(t, readErr)
		assert.Len(t, data, 16)
	})

	t.Run("stream error leaves the partial file in place", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		boom := errors.New("connection reset")
		src := &chunkedReader{bufs: [][]byte{[]byte("partial!")}, err: boom}

		written, err := e.WriteFileFrom("/f", src)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(8), written)

		data, readErr := e.ReadFile("/f")
		require.NoError(t, readErr)
		assert.Equal(t, "partial!", string(data))
	})

	t.Run("pre-unlink reclaims the prior file's bytes", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		require.NoError(t, e.SetDeviceSize(16))
		require.NoError(t, e.WriteFile("/f", make([]byte, 16)))

		src := &chunkedReader{bufs: [][]byte{bytes.Repeat([]byte("n"), 16)}}
		written, err := e.WriteFileFrom("/f", src)
		require.NoError(t, err)
		assert.Equal(t, int64(16), written)
	})
}

func TestReadFileStream(t *testing.T) {
	t.Parallel()

	t.Run("streams whole content chunk by chunk", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		payload := bytes.Repeat([]byte("0123456789"), 5)
		require.NoError(t, e.WriteFile("/f", payload))

		r, err := e.ReadFileStream("/f")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("fails with ENOENT for missing path", func(t *testing.T) {
		t.Parallel()
		e := testEngine(t)

		_, err := e.ReadFileStream("/missing")
		assert.ErrorIs(t, err, ENOENT)
	})
}
