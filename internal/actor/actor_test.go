package actor

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benallfree/dofs/internal/engine"
)

func TestActor(t *testing.T) {
	t.Parallel()

	t.Run("open creates the store on first use", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "inst.dofs")

		a, err := Open("inst", path, Options{ChunkSize: 8})
		require.NoError(t, err)
		defer a.Close()

		assert.Equal(t, "inst", a.ID())
		require.NoError(t, a.Do(func(fs *engine.Engine) error {
			return fs.WriteFile("/f", []byte("hello"))
		}))
	})

	t.Run("reopen preserves state", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "inst.dofs")

		a, err := Open("inst", path, Options{ChunkSize: 8})
		require.NoError(t, err)
		require.NoError(t, a.Do(func(fs *engine.Engine) error {
			return fs.WriteFile("/f", []byte("persisted"))
		}))
		require.NoError(t, a.Close())

		a2, err := Open("inst", path, Options{})
		require.NoError(t, err)
		defer a2.Close()

		var data []byte
		require.NoError(t, a2.Do(func(fs *engine.Engine) error {
			var err error
			data, err = fs.ReadFile("/f")
			return err
		}))
		assert.Equal(t, "persisted", string(data))
	})

	t.Run("calls are serialized", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "inst.dofs")

		a, err := Open("inst", path, Options{ChunkSize: 8})
		require.NoError(t, err)
		defer a.Close()

		require.NoError(t, a.Do(func(fs *engine.Engine) error {
			return fs.WriteFile("/counter", []byte("........"))
		}))

		// Concurrent single-byte writes through Do must not interleave
		// mid-operation; the final state reflects all of them.
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = a.Do(func(fs *engine.Engine) error {
					return fs.Write("/counter", []byte{byte('0' + i)}, engine.WriteOptions{Offset: int64(i)})
				})
			}(i)
		}
		wg.Wait()

		var data []byte
		require.NoError(t, a.Do(func(fs *engine.Engine) error {
			var err error
			data, err = fs.ReadFile("/counter")
			return err
		}))
		assert.Equal(t, "01234567", string(data))
	})
}

func TestSystem(t *testing.T) {
	t.Parallel()

	t.Run("instances are isolated", func(t *testing.T) {
		t.Parallel()
		sys := NewSystem(t.TempDir(), Options{ChunkSize: 8})
		defer sys.Close()

		a, err := sys.Get("tenant-a")
		require.NoError(t, err)
		b, err := sys.Get("tenant-b")
		require.NoError(t, err)

		require.NoError(t, a.Do(func(fs *engine.Engine) error {
			return fs.WriteFile("/f", []byte("belongs to a"))
		}))

		err = b.Do(func(fs *engine.Engine) error {
			_, err := fs.ReadFile("/f")
			return err
		})
		assert.ErrorIs(t, err, engine.ENOENT)
	})

	t.Run("same ID returns the same actor", func(t *testing.T) {
		t.Parallel()
		sys := NewSystem(t.TempDir(), Options{})
		defer sys.Close()

		a1, err := sys.Get("x")
		require.NoError(t, err)
		a2, err := sys.Get("x")
		require.NoError(t, err)
		assert.Same(t, a1, a2)
	})

	t.Run("empty ID allocates a fresh identity", func(t *testing.T) {
		t.Parallel()
		sys := NewSystem(t.TempDir(), Options{})
		defer sys.Close()

		a, err := sys.Get("")
		require.NoError(t, err)
		b, err := sys.Get("")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID(), b.ID())
	})
}
