package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaveKeeper/internal/save/port"
	"SaveKeeper/internal/save/port/porttest"
)

func TestBackend_契约(t *testing.T) {
	porttest.Run(t, func(t *testing.T) port.Backend {
		b, err := Open(filepath.Join(t.TempDir(), "save.db"), time.Second)
		require.NoError(t, err)
		return b
	})
}

func TestBackend_重新打开后数据仍在(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "save.db")
	ctx := context.Background()

	b, err := Open(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, "_Default", "global.json", []byte(`{"values":{}}`)))
	require.NoError(t, b.Close())

	b, err = Open(path, time.Second)
	require.NoError(t, err)
	defer b.Close()
	got, err := b.Read(ctx, "_Default", "global.json")
	require.NoError(t, err)
	assert.Equal(t, `{"values":{}}`, string(got))
}

func TestBackend_删除最后一个对象后slot消失(t *testing.T) {
	b, err := Open(filepath.Join(t.TempDir(), "save.db"), time.Second)
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "s", "a.json", []byte("{}")))
	require.NoError(t, b.Remove(ctx, "s", "a.json"))
	slots, err := b.Slots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
