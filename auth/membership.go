package auth

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Membership answers whether a user may join a board's room. The relay
// treats the board record system as an external collaborator; this
// interface is the whole contract.
type Membership interface {
	IsMember(ctx context.Context, boardID, userID string) (bool, error)
}

// RedisMembership checks membership against the per-board Redis sets
// maintained by the board CRUD service.
type RedisMembership struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisMembership(client *redis.Client, keyPrefix string) *RedisMembership {
	return &RedisMembership{client: client, keyPrefix: keyPrefix}
}

func (m *RedisMembership) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	ok, err := m.client.SIsMember(ctx, m.keyPrefix+boardID, userID).Result()
	if err != nil {
		return false, fmt.Errorf("membership lookup for board %s: %w", boardID, err)
	}
	return ok, nil
}

// AllowAll admits every verified identity. Used when membership checks are
// disabled (single-tenant or development deployments).
type AllowAll struct{}

func (AllowAll) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	return true, nil
}
