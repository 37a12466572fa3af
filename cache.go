package flyapi

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"
)

// QueryKey identifies a cached query. Hooks use (category, name) followed
// by any encoded parameters.
type QueryKey []string

// String renders the key in a stable, unambiguous form.
func (k QueryKey) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, part := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(part))
	}
	b.WriteByte(']')
	return b.String()
}

// HasPrefix reports whether k starts with every element of prefix.
func (k QueryKey) HasPrefix(prefix QueryKey) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Category returns the first key element, or "" for an empty key.
func (k QueryKey) Category() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// queryEntry holds one query's state and its subscribers.
type queryEntry struct {
	key    QueryKey
	mu     sync.Mutex
	state  QueryState
	subs   map[int]chan QueryState
	nextID int
}

func newQueryEntry(key QueryKey) *queryEntry {
	key = append(QueryKey(nil), key...)
	return &queryEntry{
		key:   key,
		state: QueryState{Key: key, Status: StatusPending},
	}
}

func (e *queryEntry) snapshot() QueryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// fresh returns cached data when it is younger than staleTime. A negative
// staleTime never expires.
func (e *queryEntry) fresh(staleTime time.Duration) (json.RawMessage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusSuccess || e.state.IsInvalidated {
		return nil, false
	}
	if staleTime >= 0 && time.Since(e.state.UpdatedAt) >= staleTime {
		return nil, false
	}
	return e.state.Data, true
}

func (e *queryEntry) update(fn func(*QueryState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
	e.broadcastLocked()
}

// broadcastLocked delivers the current state to every subscriber, replacing
// any value the subscriber has not consumed yet.
func (e *queryEntry) broadcastLocked() {
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- e.state
	}
}

func (e *queryEntry) subscribe() (<-chan QueryState, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]chan QueryState)
	}
	id := e.nextID
	e.nextID++
	ch := make(chan QueryState, 1)
	ch <- e.state
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

type queryStore struct {
	shards    []*queryShard
	numShards int
}

type queryShard struct {
	mu    sync.RWMutex
	store map[string]*queryEntry
}

func newQueryStore() *queryStore {
	numShards := 16
	shards := make([]*queryShard, numShards)
	for i := range shards {
		shards[i] = &queryShard{
			store: make(map[string]*queryEntry),
		}
	}
	return &queryStore{
		shards:    shards,
		numShards: numShards,
	}
}

func (s *queryStore) getShard(hash string) *queryShard {
	h := fnv.New32a()
	h.Write([]byte(hash))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

func (s *queryStore) get(key QueryKey) (*queryEntry, bool) {
	hash := key.String()
	shard := s.getShard(hash)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	entry, ok := shard.store[hash]
	return entry, ok
}

func (s *queryStore) getOrCreate(key QueryKey) *queryEntry {
	hash := key.String()
	shard := s.getShard(hash)

	shard.mu.RLock()
	entry, ok := shard.store[hash]
	shard.mu.RUnlock()
	if ok {
		return entry
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if entry, ok := shard.store[hash]; ok {
		return entry
	}
	entry = newQueryEntry(key)
	shard.store[hash] = entry
	return entry
}

// removeMatching deletes entries whose key starts with prefix and returns them.
func (s *queryStore) removeMatching(prefix QueryKey) []*queryEntry {
	var removed []*queryEntry
	for _, shard := range s.shards {
		shard.mu.Lock()
		for hash, entry := range shard.store {
			if entry.key.HasPrefix(prefix) {
				removed = append(removed, entry)
				delete(shard.store, hash)
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// matching returns entries whose key starts with prefix.
func (s *queryStore) matching(prefix QueryKey) []*queryEntry {
	var found []*queryEntry
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, entry := range shard.store {
			if entry.key.HasPrefix(prefix) {
				found = append(found, entry)
			}
		}
		shard.mu.RUnlock()
	}
	return found
}

func (s *queryStore) len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}
