// Package porttest 是 port.Backend 的通用契约测试，每个后端实现都跑同一组用例。
package porttest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaveKeeper/internal/save/port"
)

// Factory 为每个子测试创建一个全新的空后端。
type Factory func(t *testing.T) port.Backend

// Run 执行全部契约用例。
func Run(t *testing.T, newBackend Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, b port.Backend)
	}{
		{"读取不存在的对象返回ErrNotExist", testReadMissing},
		{"写入后读取", testWriteRead},
		{"覆盖写入", testOverwrite},
		{"List按名字排序且只含本slot", testList},
		{"Slots列出有对象的slot", testSlots},
		{"Remove幂等", testRemove},
		{"RemoveSlot删除整个slot", testRemoveSlot},
		{"已取消的context不执行写入", testCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tc.fn(t, b)
		})
	}
}

func testReadMissing(t *testing.T, b port.Backend) {
	_, err := b.Read(context.Background(), "_Default", "global.json")
	require.Error(t, err)
	assert.True(t, port.IsNotExist(err), "err=%v", err)
}

func testWriteRead(t *testing.T, b port.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "_Default", "global.json", []byte(`{"values":{}}`)))
	got, err := b.Read(ctx, "_Default", "global.json")
	require.NoError(t, err)
	assert.Equal(t, `{"values":{}}`, string(got))
}

func testOverwrite(t *testing.T, b port.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "s", "a.json", []byte("first")))
	require.NoError(t, b.Write(ctx, "s", "a.json", []byte("second")))
	got, err := b.Read(ctx, "s", "a.json")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func testList(t *testing.T, b port.Backend) {
	ctx := context.Background()
	for _, name := range []string{"settings.json", "_Locations.json", "global.json"} {
		require.NoError(t, b.Write(ctx, "s1", name, []byte("{}")))
	}
	require.NoError(t, b.Write(ctx, "s2", "other.json", []byte("{}")))

	names, err := b.List(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"_Locations.json", "global.json", "settings.json"}, names)

	names, err = b.List(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testSlots(t *testing.T, b port.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "profile_b", "global.json", []byte("{}")))
	require.NoError(t, b.Write(ctx, "profile_a", "global.json", []byte("{}")))

	slots, err := b.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"profile_a", "profile_b"}, slots)
}

func testRemove(t *testing.T, b port.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "s", "a.json", []byte("{}")))
	require.NoError(t, b.Remove(ctx, "s", "a.json"))
	require.NoError(t, b.Remove(ctx, "s", "a.json"))

	_, err := b.Read(ctx, "s", "a.json")
	assert.True(t, port.IsNotExist(err))
}

func testRemoveSlot(t *testing.T, b port.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "gone", "a.json", []byte("{}")))
	require.NoError(t, b.Write(ctx, "gone", "b.json", []byte("{}")))
	require.NoError(t, b.Write(ctx, "kept", "a.json", []byte("{}")))

	require.NoError(t, b.RemoveSlot(ctx, "gone"))
	require.NoError(t, b.RemoveSlot(ctx, "never"))

	names, err := b.List(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, names)
	slots, err := b.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, slots)
}

func testCanceled(t *testing.T, b port.Backend) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Write(ctx, "s", "a.json", []byte("{}"))
	require.Error(t, err)

	_, err = b.Read(context.Background(), "s", "a.json")
	assert.True(t, port.IsNotExist(err))
}
