package services

import (
	"context"
	"encoding/json"
	"time"

	"crewmeet/config"
	"crewmeet/models"
	"crewmeet/utils"

	"github.com/go-redis/redis/v8"
)

// Notifier carries the one outbound event this backend emits: a flow
// reaching confirmed. Downstream consumers (chat-room creation, push
// notifications) subscribe on their side; delivery beyond the publish is
// not this backend's concern.
type Notifier interface {
	FlowConfirmed(ctx context.Context, flow *models.MatchingFlow) error
}

// FlowConfirmedChannel is the redis pub/sub channel confirmed-flow events
// are published on.
const FlowConfirmedChannel = "crewmeet.flow.confirmed"

type flowConfirmedEvent struct {
	FlowID      uint       `json:"flow_id"`
	UUID        string     `json:"uuid"`
	FromTeamID  uint       `json:"from_team_id"`
	ToTeamID    uint       `json:"to_team_id"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// NewNotifier returns the redis notifier when redis is configured, else a
// log-only fallback.
func NewNotifier(cfg config.RedisConfig) Notifier {
	if cfg.Enabled {
		return NewRedisNotifier(cfg)
	}
	return &LogNotifier{}
}

// RedisNotifier publishes confirmed-flow events to a redis channel.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(cfg config.RedisConfig) *RedisNotifier {
	return &RedisNotifier{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (rn *RedisNotifier) FlowConfirmed(ctx context.Context, flow *models.MatchingFlow) error {
	payload, err := json.Marshal(flowConfirmedEvent{
		FlowID:      flow.ID,
		UUID:        flow.UUID,
		FromTeamID:  flow.FromTeamID,
		ToTeamID:    flow.ToTeamID,
		ConfirmedAt: flow.ConfirmedAt,
	})
	if err != nil {
		return err
	}
	return rn.client.Publish(ctx, FlowConfirmedChannel, payload).Err()
}

func (rn *RedisNotifier) Close() error {
	return rn.client.Close()
}

// LogNotifier records the event in the structured log only. Used when
// redis is disabled (development, tests).
type LogNotifier struct{}

func (ln *LogNotifier) FlowConfirmed(_ context.Context, flow *models.MatchingFlow) error {
	utils.LogEvent("flow_confirmed", map[string]interface{}{
		"flow_id":      flow.ID,
		"uuid":         flow.UUID,
		"from_team_id": flow.FromTeamID,
		"to_team_id":   flow.ToTeamID,
	})
	return nil
}
