package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/config"
	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/events"
)

// NotificationService owns the built-in subscribers: the audit log, the SLA
// breach alert, and the optional Redis relay.
type NotificationService struct {
	dispatcher events.Dispatcher
	relay      *events.RedisRelay
	logger     *zap.Logger
	cfg        config.NotificationConfig
	subs       []events.SubscriptionID
}

// NewNotificationService creates the service. relay may be nil.
func NewNotificationService(dispatcher events.Dispatcher, relay *events.RedisRelay, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		relay:      relay,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	if n.cfg.AuditLog {
		n.subs = append(n.subs, n.dispatcher.Subscribe(events.Pattern{}, n.handleAudit))
	}
	n.subs = append(n.subs, n.dispatcher.Subscribe(events.Pattern{
		Categories: []events.Category{events.CategorySystem},
	}, n.handleEscalated))
	if n.relay != nil {
		minPriority, ok := domain.ParsePriority(n.cfg.RelayMinPriority)
		if !ok {
			minPriority = domain.PriorityLow
		}
		n.subs = append(n.subs, n.dispatcher.Subscribe(events.Pattern{MinPriority: minPriority}, n.relay.Handle))
		n.logger.Info("redis relay registered", zap.String("stream", n.relay.Stream()), zap.String("min_priority", string(minPriority)))
	}
}

// Close removes every subscription registered by RegisterHandlers.
func (n *NotificationService) Close() {
	if n.dispatcher == nil {
		return
	}
	for _, id := range n.subs {
		n.dispatcher.Unsubscribe(id)
	}
	n.subs = nil
}

func (n *NotificationService) handleAudit(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("entity_id", event.EntityID),
		zap.String("kind", string(event.Kind)),
		zap.String("department", event.OwnerDepartment),
		zap.String("category", string(events.Classify(event))),
		zap.String("from", string(event.FromState)),
		zap.String("to", string(event.ToState)),
		zap.String("actor", event.Actor))
	return nil
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	if event.Type != events.EventEscalated {
		return nil
	}
	n.logger.Warn("SLA breached",
		zap.String("entity_id", event.EntityID),
		zap.String("kind", string(event.Kind)),
		zap.String("department", event.OwnerDepartment),
		zap.String("priority", string(event.Priority)),
		zap.String("state", string(event.ToState)))
	return nil
}
