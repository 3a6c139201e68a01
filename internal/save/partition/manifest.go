package partition

import (
	"sort"

	"github.com/goccy/go-json"
)

// Manifest 是有序去重的 bucket 名集合，编码为 JSON 数组。
type Manifest struct {
	names []string
}

func NewManifest(names ...string) *Manifest {
	m := &Manifest{}
	for _, n := range names {
		m.Add(n)
	}
	return m
}

// Add 插入并保持有序。
func (m *Manifest) Add(name string) {
	i := sort.SearchStrings(m.names, name)
	if i < len(m.names) && m.names[i] == name {
		return
	}
	m.names = append(m.names, "")
	copy(m.names[i+1:], m.names[i:])
	m.names[i] = name
}

func (m *Manifest) Remove(name string) {
	i := sort.SearchStrings(m.names, name)
	if i < len(m.names) && m.names[i] == name {
		m.names = append(m.names[:i], m.names[i+1:]...)
	}
}

func (m *Manifest) Contains(name string) bool {
	i := sort.SearchStrings(m.names, name)
	return i < len(m.names) && m.names[i] == name
}

func (m *Manifest) Len() int {
	return len(m.names)
}

// Names 返回排序后的拷贝。
func (m *Manifest) Names() []string {
	return append([]string{}, m.names...)
}

// Union 返回两者的并集，不修改原对象。
func (m *Manifest) Union(other *Manifest) *Manifest {
	out := NewManifest(m.names...)
	if other != nil {
		for _, n := range other.names {
			out.Add(n)
		}
	}
	return out
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Names())
}

func (m *Manifest) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	m.names = nil
	for _, n := range names {
		m.Add(n)
	}
	return nil
}
