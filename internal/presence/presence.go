// Package presence tracks which chat agents are online.
//
// An agent is online from SetOnline(true) until SetOnline(false) or until
// the TTL passes without a Heartbeat. The admin app heartbeats on its 30
// second poll, so the default TTL tolerates two missed polls.
package presence

import (
	"context"
	"time"
)

// DefaultTTL is used when a tracker is built with a zero TTL.
const DefaultTTL = 90 * time.Second

// Tracker records agent online flags.
type Tracker interface {
	SetOnline(ctx context.Context, agentID string, online bool) error
	Heartbeat(ctx context.Context, agentID string) error
	IsOnline(ctx context.Context, agentID string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}

// AnyOnline reports whether at least one agent is online.
func AnyOnline(ctx context.Context, t Tracker) (bool, error) {
	agents, err := t.Online(ctx)
	if err != nil {
		return false, err
	}
	return len(agents) > 0, nil
}
