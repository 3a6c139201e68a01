package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaveKeeper/internal/save/infra/persistence/file"
	"SaveKeeper/internal/save/infra/persistence/memory"
	"SaveKeeper/internal/save/participant"
	"SaveKeeper/internal/save/partition"
	"SaveKeeper/internal/save/saveerr"
	"SaveKeeper/internal/save/store"
)

func TestSaveLoad_Set后Clear再Load能还原(t *testing.T) {
	root := t.TempDir()
	fb, err := file.New(root)
	require.NoError(t, err)
	m := newTestManager(t, fb)
	ctx := context.Background()

	m.Store().Set("global", "a", "x")
	m.Store().Set("settings", "b", "y")
	r, err := m.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"global", "settings"}, r.With(BucketWritten))

	manifest, err := os.ReadFile(filepath.Join(root, "_Default", "_Locations.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `["global","settings"]`, string(manifest))
	assert.FileExists(t, partition.DefaultLayout().Path(root, "_Default", "settings", partition.Permanent))

	m.Store().Clear()
	_, err = m.Load(ctx)
	require.NoError(t, err)

	a, ok, err := store.Get[string](m.Store(), "global", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", a)
	b, ok, err := store.Get[string](m.Store(), "settings", "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "y", b)
}

func TestLoad_读档后按int读取字符串返回类型不匹配(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	m.Store().Set("global", "a", "x")
	m.Store().Set("global", "n", 12)
	_, err := m.Save(ctx)
	require.NoError(t, err)
	m.Store().Clear()
	_, err = m.Load(ctx)
	require.NoError(t, err)

	_, ok, err := store.Get[int](m.Store(), "global", "a")
	assert.True(t, ok)
	assert.True(t, saveerr.Is(err, saveerr.CodeTypeMismatch))

	n, _, err := store.Get[int](m.Store(), "global", "n")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	a, _, err := store.Get[string](m.Store(), "global", "a")
	require.NoError(t, err)
	assert.Equal(t, "x", a)
}

func TestSaveLoad_超过2的53次方的整数原样还原(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	m.Store().Set("global", "big", int64(9007199254740993))
	m.Store().Set("global", "ids", []uint64{18446744073709551615})
	_, err := m.Save(ctx)
	require.NoError(t, err)
	m.Store().Clear()
	_, err = m.Load(ctx)
	require.NoError(t, err)

	big, ok, err := store.Get[int64](m.Store(), "global", "big")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9007199254740993), big)
	ids, _, err := store.Get[[]uint64](m.Store(), "global", "ids")
	require.NoError(t, err)
	assert.Equal(t, []uint64{18446744073709551615}, ids)
}

func TestSave_参与者不再写的key从存档消失(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	p := &optionalField{Base: participant.NewBase("h1", participant.Global()), withTitle: true}
	require.NoError(t, m.Registry().Register(p))
	_, err := m.Save(ctx)
	require.NoError(t, err)

	p.withTitle = false
	_, err = m.Save(ctx)
	require.NoError(t, err)

	doc, _, err := m.Archive().ReadDocument(ctx, DefaultSlot, "global", partition.Permanent)
	require.NoError(t, err)
	assert.Equal(t, []string{"hp"}, doc.Participants["h1"].Keys())
}

// optionalField 只在 withTitle 时写 title。
type optionalField struct {
	participant.Base
	withTitle bool
}

func (o *optionalField) Save(c *participant.Container) error {
	if o.withTitle {
		if err := participant.Set(c, "title", "knight"); err != nil {
			return err
		}
	}
	return participant.Set(c, "hp", 1)
}

func (o *optionalField) Load(*participant.Container) error { return nil }

func TestSave_两次保存输出字节相同(t *testing.T) {
	root := t.TempDir()
	fb, err := file.New(root)
	require.NoError(t, err)
	m := newTestManager(t, fb)
	ctx := context.Background()

	h := newHero("h1", participant.Bucket("heroes"))
	h.HP, h.Name = 30, "arthur"
	require.NoError(t, m.Registry().Register(h))
	m.Store().Set("global", "gold", 100)
	m.Store().Set("global", "bag", map[string]any{"items": []string{"sword"}})

	read := func() map[string][]byte {
		out := map[string][]byte{}
		for _, name := range []string{"global.json", "heroes.json", "_Locations.json"} {
			data, err := os.ReadFile(filepath.Join(root, "_Default", name))
			require.NoError(t, err)
			out[name] = data
		}
		return out
	}

	_, err = m.Save(ctx)
	require.NoError(t, err)
	first := read()
	_, err = m.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, read())

	// 读档后 store 中是 token（codec.Number 等），再次保存仍然字节不变。
	_, err = m.Load(ctx)
	require.NoError(t, err)
	_, err = m.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, read())
}

func TestSave_未注册参与者的数据被保留(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	offline := newHero("offline", participant.Bucket("B"))
	offline.HP = 7
	online := newHero("online", participant.Bucket("B"))
	online.HP = 1
	require.NoError(t, m.Registry().Register(offline))
	require.NoError(t, m.Registry().Register(online))
	_, err := m.Save(ctx)
	require.NoError(t, err)

	// offline 离场，之后只有 online 参与保存。
	m.Registry().Unregister(offline)
	online.HP = 2
	_, err = m.Save(ctx)
	require.NoError(t, err)

	doc, found, err := m.Archive().ReadDocument(ctx, DefaultSlot, "B", partition.Permanent)
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, doc.Participants, "offline")
	hp, _, err := participant.Get[int](doc.Participants["offline"], "hp")
	require.NoError(t, err)
	assert.Equal(t, 7, hp)
	hp, _, err = participant.Get[int](doc.Participants["online"], "hp")
	require.NoError(t, err)
	assert.Equal(t, 2, hp)
}

func TestSave_整个bucket的参与者都离场也不删除(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	h := newHero("h", participant.Bucket("B"))
	require.NoError(t, m.Registry().Register(h))
	m.Store().Set("global", "a", 1)
	_, err := m.Save(ctx)
	require.NoError(t, err)

	m.Registry().Unregister(h)
	m.Store().Set("global", "a", 2)
	_, err = m.Save(ctx)
	require.NoError(t, err)

	_, found, err := m.Archive().ReadDocument(ctx, DefaultSlot, "B", partition.Permanent)
	require.NoError(t, err)
	assert.True(t, found)
	manifest, _, err := m.Archive().ReadManifest(ctx, DefaultSlot, partition.Permanent)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "global"}, manifest.Names())
}

func TestLoad_清单中的bucket被外部删除(t *testing.T) {
	mb := memory.New()
	m := newTestManager(t, mb)
	ctx := context.Background()
	m.Store().Set("global", "a", "x")
	m.Store().Set("settings", "b", "y")
	_, err := m.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, mb.Remove(ctx, DefaultSlot, "settings.json"))
	m.Store().Clear()
	r, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings"}, r.With(BucketMissing))

	a, ok, _ := store.Get[string](m.Store(), "global", "a")
	assert.True(t, ok)
	assert.Equal(t, "x", a)
	_, ok, err = store.Get[string](m.Store(), "settings", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSave_空注册表且store无数据时为空操作(t *testing.T) {
	rb := &recordingBackend{Backend: memory.New()}
	saved := 0
	m := newTestManager(t, rb, func(o *Options) { o.OnSaved = func(Report) { saved++ } })

	r, err := m.Save(context.Background())
	require.NoError(t, err)
	assert.True(t, r.NoOp)
	assert.Empty(t, rb.Writes())
	assert.Zero(t, rb.reads)
	assert.Zero(t, saved)
}

func TestLoad_没有清单视为没有存档(t *testing.T) {
	m := newTestManager(t, nil)
	m.Store().Set("global", "keep", true)
	r, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, r.NoOp)
	v, ok, _ := store.Get[bool](m.Store(), "global", "keep")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestLoad_不影响清单之外的bucket(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	m.Store().Set("global", "a", "saved")
	_, err := m.Save(ctx)
	require.NoError(t, err)

	m.Store().Set("global", "a", "changed")
	m.Store().Set("runtime", "b", "only-in-memory")
	_, err = m.Load(ctx)
	require.NoError(t, err)

	a, _, _ := store.Get[string](m.Store(), "global", "a")
	assert.Equal(t, "saved", a)
	b, ok, _ := store.Get[string](m.Store(), "runtime", "b")
	assert.True(t, ok)
	assert.Equal(t, "only-in-memory", b)
}

func TestSave_损坏的旧bucket不被覆盖且不影响其它bucket(t *testing.T) {
	mb := memory.New()
	m := newTestManager(t, mb)
	ctx := context.Background()
	require.NoError(t, mb.Write(ctx, DefaultSlot, "global.json", []byte("{broken")))

	m.Store().Set("global", "a", "x")
	m.Store().Set("settings", "b", "y")
	r, err := m.Save(ctx)
	require.Error(t, err)
	assert.True(t, saveerr.Is(err, saveerr.CodeFormat))
	assert.Equal(t, []string{"global"}, r.With(BucketFailed))
	assert.Equal(t, []string{"settings"}, r.With(BucketWritten))

	raw, err := mb.Read(ctx, DefaultSlot, "global.json")
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(raw))
	manifest, _, err := m.Archive().ReadManifest(ctx, DefaultSlot, partition.Permanent)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings"}, manifest.Names())
}

func TestLoad_损坏的bucket单独报告(t *testing.T) {
	mb := memory.New()
	m := newTestManager(t, mb)
	ctx := context.Background()
	m.Store().Set("global", "a", "x")
	m.Store().Set("settings", "b", "y")
	_, err := m.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, mb.Write(ctx, DefaultSlot, "settings.json", []byte("[1,")))

	m.Store().Clear()
	r, err := m.Load(ctx)
	require.Error(t, err)
	assert.True(t, saveerr.Is(err, saveerr.CodeFormat))
	assert.Equal(t, []string{"global"}, r.With(BucketLoaded))
	assert.Equal(t, []string{"settings"}, r.With(BucketFailed))

	a, ok, _ := store.Get[string](m.Store(), "global", "a")
	assert.True(t, ok)
	assert.Equal(t, "x", a)
}

func TestSave_与清单同名的bucket在IO之前被拒绝(t *testing.T) {
	rb := &recordingBackend{Backend: memory.New()}
	m := newTestManager(t, rb)
	m.Store().Set("global", "a", 1)
	m.Store().Set("_locations", "b", 2)

	_, err := m.Save(context.Background())
	require.Error(t, err)
	assert.True(t, saveerr.Is(err, saveerr.CodeConfig))
	assert.Empty(t, rb.Writes())
	assert.Zero(t, rb.reads)
}

func TestSave_非法slot在IO之前被拒绝(t *testing.T) {
	rb := &recordingBackend{Backend: memory.New()}
	m := newTestManager(t, rb)
	m.Store().Set("global", "a", 1)

	_, err := m.Save(context.Background(), WithSlot("../escape"))
	assert.True(t, saveerr.Is(err, saveerr.CodeConfig))
	_, err = m.Load(context.Background(), WithSlot(""))
	assert.True(t, saveerr.Is(err, saveerr.CodeConfig))
	assert.Zero(t, rb.reads)
	assert.Error(t, m.SetSlot("a/b"))
	assert.Equal(t, DefaultSlot, m.Slot())
}

func TestSave_参与者失败时保留旧数据且不影响其它参与者(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	flaky := newHero("flaky", participant.Global())
	flaky.HP = 5
	steady := newHero("steady", participant.Global())
	steady.HP = 9
	require.NoError(t, m.Registry().Register(flaky))
	require.NoError(t, m.Registry().Register(steady))
	_, err := m.Save(ctx)
	require.NoError(t, err)

	flaky.HP, flaky.saveErr = 6, errBoom
	steady.HP = 10
	r, err := m.Save(ctx)
	require.Error(t, err)
	assert.True(t, saveerr.Is(err, saveerr.CodeParticipant))
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, r.Failures, 1)

	doc, _, err := m.Archive().ReadDocument(ctx, DefaultSlot, "global", partition.Permanent)
	require.NoError(t, err)
	hp, _, _ := participant.Get[int](doc.Participants["flaky"], "hp")
	assert.Equal(t, 5, hp)
	hp, _, _ = participant.Get[int](doc.Participants["steady"], "hp")
	assert.Equal(t, 10, hp)
}

type panicky struct{ participant.Base }

func (panicky) Save(*participant.Container) error { panic("bad participant") }
func (panicky) Load(*participant.Container) error { return nil }

func TestSave_参与者panic转为错误(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.Registry().Register(panicky{Base: participant.NewBase("p", participant.Global())}))
	m.Store().Set("global", "a", 1)

	r, err := m.Save(context.Background())
	assert.True(t, saveerr.Is(err, saveerr.CodeParticipant))
	assert.Equal(t, []string{"global"}, r.With(BucketWritten))
}

func TestLoad_只分发给有存档数据的参与者(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	saved := newHero("saved", participant.Scene(1))
	saved.HP, saved.Name = 40, "arthur"
	require.NoError(t, m.Registry().Register(saved))
	_, err := m.Save(ctx)
	require.NoError(t, err)

	saved.HP, saved.Name = 0, ""
	fresh := newHero("fresh", participant.Scene(1))
	fresh.HP = 99
	require.NoError(t, m.Registry().Register(fresh))

	_, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, saved.HP)
	assert.Equal(t, "arthur", saved.Name)
	assert.Equal(t, 1, saved.loads)
	assert.Equal(t, 99, fresh.HP)
	assert.Zero(t, fresh.loads)
}

func TestSave_删除的key不会从磁盘复活(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	m.Store().Set("global", "a", 1)
	m.Store().Set("global", "b", 2)
	_, err := m.Save(ctx)
	require.NoError(t, err)

	m.Store().Remove("global", "a")
	_, err = m.Save(ctx)
	require.NoError(t, err)
	assert.Empty(t, m.Store().Removed("global"))

	doc, _, err := m.Archive().ReadDocument(ctx, DefaultSlot, "global", partition.Permanent)
	require.NoError(t, err)
	assert.NotContains(t, doc.Values, "a")
	assert.Contains(t, doc.Values, "b")
}

func TestSave_Clear不删除磁盘数据(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	m.Store().Set("global", "a", 1)
	_, err := m.Save(ctx)
	require.NoError(t, err)

	m.Store().Clear()
	m.Store().Set("settings", "b", 2)
	_, err = m.Save(ctx)
	require.NoError(t, err)

	doc, _, err := m.Archive().ReadDocument(ctx, DefaultSlot, "global", partition.Permanent)
	require.NoError(t, err)
	assert.Contains(t, doc.Values, "a")
}

func TestSave_取消后只留下完整写入的bucket且清单最后写(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rb := &recordingBackend{Backend: memory.New()}
	rb.onWrite = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	m := newTestManager(t, rb, func(o *Options) { o.Parallelism = 1 })
	for _, b := range []string{"a", "b", "c"} {
		m.Store().Set(b, "k", b)
	}

	r, err := m.Save(ctx)
	require.Error(t, err)
	assert.True(t, r.Canceled)
	assert.True(t, saveerr.Is(err, saveerr.CodeCanceled))
	assert.Equal(t, []string{"a"}, r.With(BucketWritten))
	assert.Equal(t, []string{"a.json", "_Locations.json"}, rb.Writes())

	manifest, _, err := m.Archive().ReadManifest(context.Background(), DefaultSlot, partition.Permanent)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, manifest.Names())
	// 未写入的 bucket 仍待保存。
	assert.Equal(t, []string{"a", "b", "c"}, m.Store().PendingBuckets())
}

func TestSave_清单总在bucket之后写入(t *testing.T) {
	rb := &recordingBackend{Backend: memory.New()}
	m := newTestManager(t, rb, func(o *Options) { o.Parallelism = 4 })
	for _, b := range []string{"a", "b", "c", "d", "e"} {
		m.Store().Set(b, "k", 1)
	}
	_, err := m.Save(context.Background())
	require.NoError(t, err)
	writes := rb.Writes()
	require.Len(t, writes, 6)
	assert.Equal(t, "_Locations.json", writes[len(writes)-1])
}

func TestLoad_已取消的context不应用任何bucket(t *testing.T) {
	m := newTestManager(t, nil)
	m.Store().Set("global", "a", "saved")
	_, err := m.Save(context.Background())
	require.NoError(t, err)
	m.Store().Set("global", "a", "memory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Load(ctx)
	require.Error(t, err)
	a, _, _ := store.Get[string](m.Store(), "global", "a")
	assert.Equal(t, "memory", a)
}

func TestAsync_结果通过通道返回(t *testing.T) {
	var savedReport, loadedReport Report
	m := newTestManager(t, nil, func(o *Options) {
		o.OnSaved = func(r Report) { savedReport = r }
		o.OnLoaded = func(r Report) { loadedReport = r }
	})
	m.Store().Set("global", "a", 1)

	res := <-m.SaveAsync(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, "save", res.Report.Action)
	assert.NotEmpty(t, res.Report.PassID)
	assert.Equal(t, res.Report.PassID, savedReport.PassID)

	res = <-m.LoadAsync(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"global"}, res.Report.With(BucketLoaded))
	assert.Equal(t, res.Report.PassID, loadedReport.PassID)
}

func TestSlots_切换与删除(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	m.Store().Set("global", "a", 1)
	_, err := m.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, m.SetSlot("profile_2"))
	m.Store().Set("global", "a", 2)
	_, err = m.Save(ctx)
	require.NoError(t, err)

	slots, err := m.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"_Default", "profile_2"}, slots)

	require.NoError(t, m.DeleteSlot(ctx, "_Default"))
	slots, err = m.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"profile_2"}, slots)
	assert.True(t, saveerr.Is(m.DeleteSlot(ctx, ".."), saveerr.CodeConfig))
}

func TestNew_非法配置(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, saveerr.Is(err, saveerr.CodeConfig))
	_, err = New(Options{Backend: memory.New(), Parallelism: -1})
	assert.True(t, saveerr.Is(err, saveerr.CodeConfig))
	_, err = New(Options{Backend: memory.New(), Slot: "a/b"})
	assert.True(t, saveerr.Is(err, saveerr.CodeConfig))
}
