// Package store 是按 (bucket, key) 寻址的内存存档表。
//
// Store 是显式对象，由调用方创建并传给 service.Manager，不存在包级全局表。
// 所有方法并发安全。
package store

import (
	"sort"
	"sync"
)

// DefaultBucket 是未指定 bucket 时使用的分区。
const DefaultBucket = "global"

// Entry 是一条存档记录。
type Entry struct {
	Bucket string
	Key    string
	Value  any
}

type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]any
	// removed 记录自上次同步以来删除的 key，合并磁盘数据时不再复活它们。
	removed map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		buckets: make(map[string]map[string]any),
		removed: make(map[string]map[string]struct{}),
	}
}

// BucketName 把空 bucket 归一为 DefaultBucket。
func BucketName(bucket string) string {
	if bucket == "" {
		return DefaultBucket
	}
	return bucket
}

// Set 插入或覆盖一条记录。
func (s *Store) Set(bucket, key string, value any) {
	bucket = BucketName(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.buckets[bucket]
	if !ok {
		entries = make(map[string]any)
		s.buckets[bucket] = entries
	}
	entries[key] = value
	if gone, ok := s.removed[bucket]; ok {
		delete(gone, key)
		if len(gone) == 0 {
			delete(s.removed, bucket)
		}
	}
}

// Lookup 返回原始存储值；缺失时 ok == false。
func (s *Store) Lookup(bucket, key string) (any, bool) {
	bucket = BucketName(bucket)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.buckets[bucket][key]
	return v, ok
}

// Remove 删除一条记录并记下墓碑；删除不存在的 key 也会记墓碑（磁盘上可能有）。
func (s *Store) Remove(bucket, key string) {
	bucket = BucketName(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	if entries, ok := s.buckets[bucket]; ok {
		delete(entries, key)
		if len(entries) == 0 {
			delete(s.buckets, bucket)
		}
	}
	gone, ok := s.removed[bucket]
	if !ok {
		gone = make(map[string]struct{})
		s.removed[bucket] = gone
	}
	gone[key] = struct{}{}
}

// Clear 清空内存中的全部记录；不记墓碑，磁盘上的数据在下次保存时保留。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]map[string]any)
	s.removed = make(map[string]map[string]struct{})
}

// Len 返回记录总数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entries := range s.buckets {
		n += len(entries)
	}
	return n
}

// Buckets 返回当前持有记录的 bucket，已排序。
func (s *Store) Buckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.buckets)
}

// PendingBuckets 返回有记录或有墓碑、需要参与下一次保存的 bucket。
func (s *Store) PendingBuckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.buckets)+len(s.removed))
	for b := range s.buckets {
		seen[b] = struct{}{}
	}
	for b := range s.removed {
		seen[b] = struct{}{}
	}
	return sortedKeys(seen)
}

// Entries 返回一个 bucket 的浅拷贝。
func (s *Store) Entries(bucket string) map[string]any {
	bucket = BucketName(bucket)
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.buckets[bucket]
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Snapshot 返回全部记录，按 (bucket, key) 排序。
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, bucket := range sortedKeys(s.buckets) {
		entries := s.buckets[bucket]
		for _, key := range sortedKeys(entries) {
			out = append(out, Entry{Bucket: bucket, Key: key, Value: entries[key]})
		}
	}
	return out
}

// Removed 返回 bucket 上未同步的墓碑 key，已排序。
func (s *Store) Removed(bucket string) []string {
	bucket = BucketName(bucket)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.removed[bucket])
}

// ForgetRemoved 在 bucket 成功写盘后清掉它的墓碑。
// 指定 keys 时只清这些 key，保存过程中新产生的墓碑保留到下一次保存。
func (s *Store) ForgetRemoved(bucket string, keys ...string) {
	bucket = BucketName(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		delete(s.removed, bucket)
		return
	}
	gone, ok := s.removed[bucket]
	if !ok {
		return
	}
	for _, k := range keys {
		delete(gone, k)
	}
	if len(gone) == 0 {
		delete(s.removed, bucket)
	}
}

// ReplaceBucket 用读档结果整体替换一个 bucket，其它 bucket 不受影响。
func (s *Store) ReplaceBucket(bucket string, entries map[string]any) {
	bucket = BucketName(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removed, bucket)
	if len(entries) == 0 {
		delete(s.buckets, bucket)
		return
	}
	next := make(map[string]any, len(entries))
	for k, v := range entries {
		next[k] = v
	}
	s.buckets[bucket] = next
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
