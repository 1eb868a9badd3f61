package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// serverTime is the Memory sentinel for ServerTimestamp, resolved at
// write time.
type serverTime struct{}

// Memory is an in-process Gateway used by tests and local runs. Writes
// are applied under one lock and re-published to matching subscriptions,
// so consumers observe the same snapshot-per-change behaviour as the
// Firestore gateway.
type Memory struct {
	mu    sync.Mutex
	colls map[string]*memColl
	subs  []*memSub
	seq   int64
	epoch time.Time
}

type memColl struct {
	docs  map[string]map[string]any
	order map[string]int64 // insertion sequence, tie-break for equal timestamps
}

type memSub struct {
	query Query
	sub   *Subscription
}

func NewMemory() *Memory {
	return &Memory{
		colls: map[string]*memColl{},
		epoch: time.Now().UTC().Truncate(time.Second),
	}
}

func (m *Memory) Get(_ context.Context, path, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.colls[path]
	if !ok {
		return Document{}, ErrNotFound
	}
	data, ok := coll.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: copyData(data)}, nil
}

func (m *Memory) Add(_ context.Context, path string, data map[string]any) (string, error) {
	id := uuid.New().String()
	m.mu.Lock()
	m.put(path, id, data)
	m.mu.Unlock()
	m.broadcast(path)
	return id, nil
}

func (m *Memory) Create(_ context.Context, path, id string, data map[string]any) error {
	m.mu.Lock()
	if coll, ok := m.colls[path]; ok {
		if _, exists := coll.docs[id]; exists {
			m.mu.Unlock()
			return ErrExists
		}
	}
	m.put(path, id, data)
	m.mu.Unlock()
	m.broadcast(path)
	return nil
}

func (m *Memory) Set(_ context.Context, path, id string, data map[string]any, merge bool) error {
	m.mu.Lock()
	coll := m.coll(path)
	if existing, ok := coll.docs[id]; ok && merge {
		merged := copyData(existing)
		for k, v := range m.resolve(data) {
			merged[k] = v
		}
		coll.docs[id] = merged
	} else {
		m.put(path, id, data)
	}
	m.mu.Unlock()
	m.broadcast(path)
	return nil
}

func (m *Memory) Update(_ context.Context, path, id string, data map[string]any) error {
	m.mu.Lock()
	coll, ok := m.colls[path]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	existing, ok := coll.docs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range m.resolve(data) {
		existing[k] = v
	}
	m.mu.Unlock()
	m.broadcast(path)
	return nil
}

func (m *Memory) Query(_ context.Context, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(q), nil
}

func (m *Memory) Subscribe(_ context.Context, q Query) (*Subscription, error) {
	m.mu.Lock()
	ms := &memSub{query: q}
	ms.sub = newSubscription(func() { m.drop(ms) })
	m.subs = append(m.subs, ms)
	ms.sub.push(m.run(q)) // initial snapshot, delivered without a remote change
	m.mu.Unlock()
	return ms.sub, nil
}

func (m *Memory) ServerTimestamp() any { return serverTime{} }

// put stores a resolved copy of data; the caller holds m.mu.
func (m *Memory) put(path, id string, data map[string]any) {
	coll := m.coll(path)
	coll.docs[id] = m.resolve(data)
	m.seq++
	coll.order[id] = m.seq
}

func (m *Memory) coll(path string) *memColl {
	coll, ok := m.colls[path]
	if !ok {
		coll = &memColl{docs: map[string]map[string]any{}, order: map[string]int64{}}
		m.colls[path] = coll
	}
	return coll
}

func (m *Memory) drop(ms *memSub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s == ms {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

func (m *Memory) broadcast(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.subs {
		if ms.query.Path == path {
			ms.sub.push(m.run(ms.query))
		}
	}
}

// resolve copies data, replacing ServerTimestamp sentinels with a
// strictly increasing write time so equal wall clocks cannot occur.
func (m *Memory) resolve(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := v.(serverTime); ok {
			m.seq++
			out[k] = m.epoch.Add(time.Duration(m.seq) * time.Millisecond)
			continue
		}
		out[k] = v
	}
	return out
}

// run evaluates a query; the caller holds m.mu.
func (m *Memory) run(q Query) []Document {
	coll, ok := m.colls[q.Path]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(coll.docs))
	for id := range coll.docs {
		ids = append(ids, id)
	}
	// insertion order first, so the OrderBy sort below is a stable
	// tie-break on equal values
	sort.Slice(ids, func(i, j int) bool { return coll.order[ids[i]] < coll.order[ids[j]] })

	var docs []Document
	for _, id := range ids {
		data := coll.docs[id]
		if matchesAll(data, q.Filters) {
			docs = append(docs, Document{ID: id, Data: copyData(data)})
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := lessValue(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
			if q.Desc {
				return lessValue(docs[j].Data[q.OrderBy], docs[i].Data[q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matches(data, f) {
			return false
		}
	}
	return true
}

func matches(data map[string]any, f Filter) bool {
	v := data[f.Path]
	switch f.Op {
	case "==":
		return v == f.Value
	case "array-contains":
		switch arr := v.(type) {
		case []string:
			for _, el := range arr {
				if el == f.Value {
					return true
				}
			}
		case []any:
			for _, el := range arr {
				if el == f.Value {
					return true
				}
			}
		}
	}
	return false
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv) < 0
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	}
	return false
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch vv := v.(type) {
		case []string:
			out[k] = append([]string(nil), vv...)
		case map[string]any:
			out[k] = copyData(vv)
		default:
			out[k] = v
		}
	}
	return out
}
