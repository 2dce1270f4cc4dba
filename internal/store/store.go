// Package store provides a hierarchical JSON document tree addressed by
// slash-delimited paths, with point reads and writes, shallow merges,
// generated child keys and a change feed per subtree.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Event types emitted by Watch.
const (
	EventPut    = "put"
	EventDelete = "delete"
)

// ErrInvalidPath is returned for empty paths or paths containing "." or ".." segments.
var ErrInvalidPath = errors.New("invalid store path")

// Event describes a change to one node. Data is empty for deletes.
type Event struct {
	Type string          `json:"type"`
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Store is the document tree used by every repository.
type Store interface {
	// Get decodes the node at path into dest. found is false when the node does not exist.
	Get(ctx context.Context, path string, dest interface{}) (found bool, err error)
	// Set overwrites the node at path.
	Set(ctx context.Context, path string, value interface{}) error
	// Create writes value at path only if no node exists there. created is
	// false when the path was already taken.
	Create(ctx context.Context, path string, value interface{}) (created bool, err error)
	// Update merges fields into the node at path, creating it if needed.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Delete removes the node at path and everything below it.
	Delete(ctx context.Context, path string) error
	// Children returns the direct children of path keyed by their last segment.
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)
	// Push stores value under a new unique child key of path and returns the key.
	Push(ctx context.Context, path string, value interface{}) (string, error)
	// Watch streams changes at or below path until ctx is done.
	Watch(ctx context.Context, path string) (<-chan Event, error)
	Ping(ctx context.Context) error
	Close() error
}

// CleanPath normalises a path: surrounding and repeated slashes are dropped.
func CleanPath(p string) (string, error) {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		switch part {
		case "":
			continue
		case ".", "..":
			return "", errors.Wrapf(ErrInvalidPath, "%q", p)
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return "", errors.Wrapf(ErrInvalidPath, "%q", p)
	}
	return strings.Join(out, "/"), nil
}

// Join builds a path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

func parentOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

func lastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// within reports whether path is prefix itself or lies below it.
func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// mergeFields applies fields on top of an existing JSON object.
func mergeFields(existing []byte, fields map[string]interface{}) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, errors.Wrap(err, "Cannot merge into non-object node")
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "Cannot encode field %s", k)
		}
		doc[k] = raw
	}
	return json.Marshal(doc)
}

// DecodeChildren decodes every child document into T.
func DecodeChildren[T any](children map[string]json.RawMessage) (map[string]T, error) {
	out := make(map[string]T, len(children))
	for key, raw := range children {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "Cannot decode child %s", key)
		}
		out[key] = v
	}
	return out, nil
}
