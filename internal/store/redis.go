package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxUpdateRetries = 5

// RedisStore keeps each node as a JSON string under prefix+"node:"+path and
// tracks children in a set per parent. Changes are published on
// prefix+"events".
type RedisStore struct {
	client *redis.Client
	prefix string
	keys   *KeyGenerator
	logger *zap.Logger
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot parse redis URL")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "Cannot ping redis")
	}
	return client, nil
}

// NewRedisStore wraps a client. All keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string, keys *KeyGenerator, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, keys: keys, logger: logger}
}

func (s *RedisStore) nodeKey(path string) string {
	return s.prefix + "node:" + path
}

func (s *RedisStore) childrenKey(parent string) string {
	return s.prefix + "children:" + parent
}

func (s *RedisStore) channel() string {
	return s.prefix + "events"
}

func (s *RedisStore) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := s.client.Get(ctx, s.nodeKey(path)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, errors.Wrapf(err, "Cannot read %s", path)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "Cannot decode %s", path)
	}
	return true, nil
}

// queuePut adds the node write, its parent link and the change event to a pipeline.
func (s *RedisStore) queuePut(ctx context.Context, p redis.Pipeliner, path string, data []byte) error {
	ev, err := json.Marshal(Event{Type: EventPut, Path: path, Data: data})
	if err != nil {
		return errors.Wrap(err, "Cannot encode change event")
	}
	p.Set(ctx, s.nodeKey(path), data, 0)
	p.SAdd(ctx, s.childrenKey(parentOf(path)), lastSegment(path))
	p.Publish(ctx, s.channel(), ev)
	return nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "Cannot encode %s", path)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		return s.queuePut(ctx, p, path, data)
	})
	if err != nil {
		return errors.Wrapf(err, "Cannot write %s", path)
	}
	return nil
}

// Create claims the node with SETNX, then links it to its parent and
// publishes the change.
func (s *RedisStore) Create(ctx context.Context, path string, value interface{}) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, errors.Wrapf(err, "Cannot encode %s", path)
	}
	ev, err := json.Marshal(Event{Type: EventPut, Path: path, Data: data})
	if err != nil {
		return false, errors.Wrap(err, "Cannot encode change event")
	}

	created, err := s.client.SetNX(ctx, s.nodeKey(path), data, 0).Result()
	if err != nil {
		return false, errors.Wrapf(err, "Cannot create %s", path)
	}
	if !created {
		return false, nil
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, s.childrenKey(parentOf(path)), lastSegment(path))
		p.Publish(ctx, s.channel(), ev)
		return nil
	})
	if err != nil {
		return true, errors.Wrapf(err, "Cannot link %s", path)
	}
	return true, nil
}

// Update performs an optimistic read-merge-write guarded by WATCH.
func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	key := s.nodeKey(path)

	txf := func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		data, err := mergeFields(existing, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			return s.queuePut(ctx, p, path, data)
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return errors.Wrapf(err, "Cannot update %s", path)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	paths := []string{path}
	iter := s.client.Scan(ctx, 0, escapeGlob(s.nodeKey(path+"/"))+"*", 200).Iterator()
	for iter.Next(ctx) {
		paths = append(paths, strings.TrimPrefix(iter.Val(), s.prefix+"node:"))
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "Cannot scan %s", path)
	}

	ev, err := json.Marshal(Event{Type: EventDelete, Path: path})
	if err != nil {
		return errors.Wrap(err, "Cannot encode change event")
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, node := range paths {
			p.Del(ctx, s.nodeKey(node), s.childrenKey(node))
		}
		p.SRem(ctx, s.childrenKey(parentOf(path)), lastSegment(path))
		p.Publish(ctx, s.channel(), ev)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "Cannot delete %s", path)
	}
	return nil
}

func (s *RedisStore) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	keys, err := s.client.SMembers(ctx, s.childrenKey(path)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot list %s", path)
	}
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	nodeKeys := make([]string, len(keys))
	for i, k := range keys {
		nodeKeys[i] = s.nodeKey(Join(path, k))
	}
	values, err := s.client.MGet(ctx, nodeKeys...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot read children of %s", path)
	}
	for i, v := range values {
		// Intermediate nodes have a children set but no document.
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = json.RawMessage(str)
	}
	return out, nil
}

func (s *RedisStore) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := s.keys.Next()
	if err := s.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RedisStore) Watch(ctx context.Context, path string) (<-chan Event, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, "Cannot subscribe to change feed")
	}

	ch := make(chan Event, watchBuffer)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("Malformed change event", zap.String("payload", msg.Payload))
					continue
				}
				if !within(ev.Path, path) && !within(path, ev.Path) {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
