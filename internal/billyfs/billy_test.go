package billyfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benallfree/dofs/internal/engine"
	"github.com/benallfree/dofs/internal/store"
)

func testFS(t *testing.T) *Filesystem {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dofs")
	st, err := store.Create(path, engine.RootAttr(), store.Options{ChunkSize: 8})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(engine.New(st, engine.Options{}))
}

func TestCreateWriteRead(t *testing.T) {
	t.Parallel()

	t.Run("write then read through handles", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		f, err := fs.Create("/f.txt")
		require.NoError(t, err)
		_, err = f.Write([]byte("hello world"))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		r, err := fs.Open("/f.txt")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(data))
	})

	t.Run("create truncates existing content", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		f, err := fs.Create("/f")
		require.NoError(t, err)
		_, err = f.Write([]byte("long original content"))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		f2, err := fs.Create("/f")
		require.NoError(t, err)
		_, err = f2.Write([]byte("new"))
		require.NoError(t, err)
		require.NoError(t, f2.Close())

		info, err := fs.Stat("/f")
		require.NoError(t, err)
		assert.Equal(t, int64(3), info.Size())
	})

	t.Run("open missing file fails", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		_, err := fs.Open("/missing")
		assert.ErrorIs(t, err, engine.ENOENT)
	})

	t.Run("O_EXCL fails on existing file", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		f, err := fs.Create("/f")
		require.NoError(t, err)
		f.Close()

		_, err = fs.OpenFile("/f", os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		assert.ErrorIs(t, err, os.ErrExist)
	})

	t.Run("O_APPEND starts at end of file", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		f, err := fs.Create("/f")
		require.NoError(t, err)
		_, err = f.Write([]byte("abc"))
		require.NoError(t, err)
		f.Close()

		a, err := fs.OpenFile("/f", os.O_WRONLY|os.O_APPEND, 0)
		require.NoError(t, err)
		_, err = a.Write([]byte("def"))
		require.NoError(t, err)
		a.Close()

		r, err := fs.Open("/f")
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "abcdef", string(data))
	})
}

func TestSeek(t *testing.T) {
	t.Parallel()

	fs := testFS(t)
	f, err := fs.Create("/f")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)

	pos, err := f.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	buf := make([]byte, 3)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "234", string(buf[:n]))

	pos, err = f.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	require.NoError(t, f.Close())
}

func TestDirOps(t *testing.T) {
	t.Parallel()

	t.Run("MkdirAll and ReadDir", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		require.NoError(t, fs.MkdirAll("/a/b", 0o755))
		require.NoError(t, fs.MkdirAll("/a/b", 0o755), "MkdirAll tolerates existing directories")

		f, err := fs.Create("/a/f")
		require.NoError(t, err)
		f.Close()

		infos, err := fs.ReadDir("/a")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "b", infos[0].Name())
		assert.True(t, infos[0].IsDir())
		assert.Equal(t, "f", infos[1].Name())
		assert.False(t, infos[1].IsDir())
	})

	t.Run("Remove handles files and empty directories", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		require.NoError(t, fs.MkdirAll("/d", 0o755))
		f, err := fs.Create("/f")
		require.NoError(t, err)
		f.Close()

		require.NoError(t, fs.Remove("/f"))
		require.NoError(t, fs.Remove("/d"))

		_, err = fs.Stat("/f")
		assert.ErrorIs(t, err, engine.ENOENT)
		_, err = fs.Stat("/d")
		assert.ErrorIs(t, err, engine.ENOENT)
	})

	t.Run("Rename replaces destination", func(t *testing.T) {
		t.Parallel()
		fs := testFS(t)

		d, err := fs.Create("/dst")
		require.NoError(t, err)
		_, err = d.Write([]byte("old destination content"))
		require.NoError(t, err)
		d.Close()

		f, err := fs.Create("/src")
		require.NoError(t, err)
		_, err = f.Write([]byte("payload"))
		require.NoError(t, err)
		f.Close()

		require.NoError(t, fs.Rename("/src", "/dst"))
		info, err := fs.Stat("/dst")
		require.NoError(t, err)
		assert.Equal(t, int64(7), info.Size())
	})
}

func TestSymlinks(t *testing.T) {
	t.Parallel()

	fs := testFS(t)
	require.NoError(t, fs.Symlink("/target", "/link"))

	target, err := fs.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "/target", target)

	info, err := fs.Lstat("/link")
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
}

func TestTempFile(t *testing.T) {
	t.Parallel()

	fs := testFS(t)
	f, err := fs.TempFile("/", "upload-")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("tmp"))
	require.NoError(t, err)

	info, err := fs.Stat(f.Name())
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
}

func TestJoinAndRoot(t *testing.T) {
	t.Parallel()

	fs := testFS(t)
	assert.Equal(t, "/a/b", fs.Join("a", "b"))
	assert.Equal(t, "/", fs.Root())

	_, err := fs.Chroot("/a")
	assert.Error(t, err)
}
