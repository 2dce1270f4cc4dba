package store

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

// KeyGenerator issues unique, time-ordered keys for pushed children.
// Each process needs its own node number.
type KeyGenerator struct {
	node *snowflake.Node
}

// NewKeyGenerator creates a generator for the given node (0-1023).
func NewKeyGenerator(node int64) (*KeyGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot create snowflake node")
	}
	return &KeyGenerator{node: n}, nil
}

// Next returns a new key.
func (g *KeyGenerator) Next() string {
	return g.node.Generate().String()
}
