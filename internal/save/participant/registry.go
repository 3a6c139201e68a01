package participant

import (
	"fmt"
	"sort"
	"sync"

	"SaveKeeper/internal/save/saveerr"
)

// Registration 是注册表中的一项快照。
type Registration struct {
	Participant Participant
	Bucket      string
	Container   *Container
}

type entry struct {
	p      Participant
	bucket string
	c      *Container
}

// Registry 按注册顺序记录活参与者；每个参与者注册时即获得自己的容器。
//
// 参与者的 bucket 在注册时求值一次，之后不再变化。
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[regKey]*entry
	seq     int
}

type regKey struct {
	bucket string
	id     string
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[regKey]*entry)}
}

// Register 加入一个参与者；空 ID 或同 bucket 内重复 ID 返回配置错误。
func (r *Registry) Register(p Participant) error {
	if p == nil {
		return saveerr.Config(saveerr.ReasonParticipantID, "participant is nil")
	}
	id := p.ID()
	if id == "" {
		return saveerr.Config(saveerr.ReasonParticipantID, "participant id is empty")
	}
	bucket := p.Scope().Bucket()
	k := regKey{bucket: bucket, id: id}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.index[k]; dup {
		return saveerr.Config(saveerr.ReasonParticipantDup,
			fmt.Sprintf("participant %q already registered in bucket %q", id, bucket)).
			WithData("participant_id", id).
			WithData("bucket", bucket)
	}
	e := &entry{p: p, bucket: bucket, c: NewContainer(r.seq)}
	r.seq++
	r.entries = append(r.entries, e)
	r.index[k] = e
	return nil
}

// Unregister 移除参与者并丢弃它的容器；未注册时返回 false。
func (r *Registry) Unregister(p Participant) bool {
	if p == nil {
		return false
	}
	k := regKey{bucket: p.Scope().Bucket(), id: p.ID()}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[k]
	if !ok {
		return false
	}
	delete(r.index, k)
	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Participants 按注册顺序返回参与者。
func (r *Registry) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.p)
	}
	return out
}

// Registrations 按注册顺序返回快照。
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Registration{Participant: e.p, Bucket: e.bucket, Container: e.c})
	}
	return out
}

// Container 返回参与者当前的容器。
func (r *Registry) Container(bucket, id string) (*Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.index[regKey{bucket: bucket, id: id}]
	if !ok {
		return nil, false
	}
	return e.c, true
}

// ReplaceContainer 用读档结果替换容器，保留注册序号；参与者不存在时返回 false。
func (r *Registry) ReplaceContainer(bucket, id string, c *Container) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[regKey{bucket: bucket, id: id}]
	if !ok || c == nil {
		return false
	}
	next := c.Clone()
	next.order = e.c.Order()
	e.c = next
	return true
}

// ActiveBuckets 返回至少有一个活参与者的 bucket，已排序。
func (r *Registry) ActiveBuckets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range r.entries {
		seen[e.bucket] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// ByBucket 按 bucket 分组，组内保持注册顺序。
func (r *Registry) ByBucket() map[string][]Registration {
	out := make(map[string][]Registration)
	for _, reg := range r.Registrations() {
		out[reg.Bucket] = append(out[reg.Bucket], reg)
	}
	return out
}
