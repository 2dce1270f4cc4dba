package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

const watchBuffer = 64

// MemoryStore keeps the tree in process memory. It backs tests and
// single-instance development runs.
type MemoryStore struct {
	keys *KeyGenerator

	mu       sync.RWMutex
	nodes    map[string][]byte
	watchers map[int]*memWatcher
	nextID   int
}

type memWatcher struct {
	prefix string
	ch     chan Event
}

// NewMemoryStore creates an empty in-memory tree.
func NewMemoryStore(keys *KeyGenerator) *MemoryStore {
	return &MemoryStore{
		keys:     keys,
		nodes:    make(map[string][]byte),
		watchers: make(map[int]*memWatcher),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	data, ok := s.nodes[path]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "Cannot decode %s", path)
	}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "Cannot encode %s", path)
	}

	s.mu.Lock()
	s.nodes[path] = data
	s.mu.Unlock()

	s.publish(Event{Type: EventPut, Path: path, Data: data})
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, path string, value interface{}) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, errors.Wrapf(err, "Cannot encode %s", path)
	}

	s.mu.Lock()
	if _, taken := s.nodes[path]; taken {
		s.mu.Unlock()
		return false, nil
	}
	s.nodes[path] = data
	s.mu.Unlock()

	s.publish(Event{Type: EventPut, Path: path, Data: data})
	return true, nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	data, err := mergeFields(s.nodes[path], fields)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "Cannot update %s", path)
	}
	s.nodes[path] = data
	s.mu.Unlock()

	s.publish(Event{Type: EventPut, Path: path, Data: data})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for p := range s.nodes {
		if within(p, path) {
			delete(s.nodes, p)
		}
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventDelete, Path: path})
	return nil
}

func (s *MemoryStore) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage)
	for p, data := range s.nodes {
		if parentOf(p) == path {
			out[lastSegment(p)] = append(json.RawMessage(nil), data...)
		}
	}
	return out, nil
}

func (s *MemoryStore) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := s.keys.Next()
	if err := s.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MemoryStore) Watch(ctx context.Context, path string) (<-chan Event, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	w := &memWatcher{prefix: path, ch: make(chan Event, watchBuffer)}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(w.ch)
		s.mu.Unlock()
	}()
	return w.ch, nil
}

// publish fans an event out to matching watchers. Slow watchers miss events
// rather than stall writers.
func (s *MemoryStore) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.watchers {
		if !within(ev.Path, w.prefix) && !within(w.prefix, ev.Path) {
			continue
		}
		select {
		case w.ch <- ev:
		default:
		}
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
