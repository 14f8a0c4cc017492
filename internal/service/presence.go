package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/presence"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

// PresenceService tracks which agents are taking chats.
type PresenceService struct {
	tracker presence.Tracker
	logger  *logger.Logger
}

// NewPresenceService creates a new presence service.
func NewPresenceService(tracker presence.Tracker, log *logger.Logger) *PresenceService {
	return &PresenceService{tracker: tracker, logger: log.Module("presence")}
}

// SetOnline toggles the agent's availability.
func (s *PresenceService) SetOnline(ctx context.Context, agentID string, online bool) error {
	if agentID == "" {
		return invalid("agent id is required")
	}
	if err := s.tracker.SetOnline(ctx, agentID, online); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	s.logger.Info("agent presence changed", zap.String("agent_id", agentID), zap.Bool("online", online))
	s.refreshGauge(ctx)
	return nil
}

// Heartbeat keeps an online agent online.
func (s *PresenceService) Heartbeat(ctx context.Context, agentID string) (bool, error) {
	if err := s.tracker.Heartbeat(ctx, agentID); err != nil {
		return false, fmt.Errorf("presence heartbeat: %w", err)
	}
	online, err := s.tracker.IsOnline(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return online, nil
}

// IsOnline reports whether the agent is online.
func (s *PresenceService) IsOnline(ctx context.Context, agentID string) (bool, error) {
	return s.tracker.IsOnline(ctx, agentID)
}

// Online lists online agents.
func (s *PresenceService) Online(ctx context.Context) ([]string, error) {
	agents, err := s.tracker.Online(ctx)
	if err != nil {
		return nil, fmt.Errorf("list online agents: %w", err)
	}
	metrics.AgentsOnline.Set(float64(len(agents)))
	if agents == nil {
		agents = []string{}
	}
	return agents, nil
}

// AnyOnline reports whether at least one agent is online.
func (s *PresenceService) AnyOnline(ctx context.Context) (bool, error) {
	return presence.AnyOnline(ctx, s.tracker)
}

func (s *PresenceService) refreshGauge(ctx context.Context) {
	if _, err := s.Online(ctx); err != nil {
		s.logger.Debug("presence gauge refresh failed", zap.Error(err))
	}
}
