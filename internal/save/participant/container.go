package participant

import (
	"reflect"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"SaveKeeper/internal/save/codec"
	"SaveKeeper/internal/save/saveerr"
)

// Container 是单个参与者的 key → 编码值 集合。
//
// 值以 codec 文本保存（标量带载体）。存档时参与者总是写入一个新容器。
type Container struct {
	mu    sync.RWMutex
	order int
	data  map[string]codec.RawMessage
}

type containerJSON struct {
	Order int                         `json:"order"`
	Data  map[string]codec.RawMessage `json:"data"`
}

func NewContainer(order int) *Container {
	return &Container{order: order, data: make(map[string]codec.RawMessage)}
}

// Order 是参与者的注册序号，用于稳定排序。
func (c *Container) Order() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order
}

// Set 编码并写入一个值。
func Set[T any](c *Container, key string, value T) error {
	return c.SetValue(key, value)
}

// Get 读取并解码一个值；缺失返回 (zero, false, nil)。
func Get[T any](c *Container, key string) (T, bool, error) {
	var zero T
	raw, ok := c.Raw(key)
	if !ok {
		return zero, false, nil
	}
	v, err := codec.Deserialize[T](raw)
	if err != nil {
		return zero, true, saveerr.ErrTypeMismatch.
			WithMsg("container value cannot be decoded as " + reflect.TypeFor[T]().String()).
			WithData("key", key).
			WithCause(err)
	}
	return v, true, nil
}

// SetValue 是 Set 的非泛型版本。
func (c *Container) SetValue(key string, value any) error {
	raw, err := codec.Serialize(value)
	if err != nil {
		return saveerr.ErrFormat.WithReason(saveerr.ReasonEntryEncode).WithData("key", key).WithCause(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

// Raw 返回编码后的文本。
func (c *Container) Raw(key string) (codec.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.data[key]
	return raw, ok
}

// Decode 把值解码进 out（指针）；缺失时返回 false 且不修改 out。
func (c *Container) Decode(key string, out any) (bool, error) {
	raw, ok := c.Raw(key)
	if !ok {
		return false, nil
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return true, saveerr.ErrTypeMismatch.WithMsg("decode target must be a non-nil pointer").WithData("key", key)
	}
	if codec.IsScalarType(rv.Elem().Type()) {
		inner, err := codec.Unwrap(raw)
		if err != nil {
			return true, saveerr.ErrTypeMismatch.WithData("key", key).WithCause(err)
		}
		raw = inner
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		return true, saveerr.ErrTypeMismatch.WithData("key", key).WithCause(err)
	}
	return true, nil
}

func (c *Container) Contains(key string) bool {
	_, ok := c.Raw(key)
	return ok
}

func (c *Container) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Keys 返回排序后的 key。
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clone 深拷贝，合并存档时避免与活容器共享底层字节。
func (c *Container) Clone() *Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &Container{order: c.order, data: make(map[string]codec.RawMessage, len(c.data))}
	for k, v := range c.data {
		out.data[k] = append(codec.RawMessage(nil), v...)
	}
	return out
}

func (c *Container) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data := c.data
	if data == nil {
		data = map[string]codec.RawMessage{}
	}
	return json.Marshal(containerJSON{Order: c.order, Data: data})
}

func (c *Container) UnmarshalJSON(b []byte) error {
	var in containerJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return saveerr.ErrFormat.WithReason(saveerr.ReasonContainerCorrupt).WithCause(err)
	}
	if in.Data == nil {
		in.Data = make(map[string]codec.RawMessage)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = in.Order
	c.data = in.Data
	return nil
}
