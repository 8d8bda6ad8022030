package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/events"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

// Subscriber is the subscription half of the workflow service.
type Subscriber interface {
	Subscribe(pattern events.Pattern, handler events.EventHandler) events.SubscriptionID
	Unsubscribe(id events.SubscriptionID) bool
}

var errStreamLagging = errors.New("stream consumer lagging; event dropped")

// EventsHandler streams matching events to the caller as server-sent events.
type EventsHandler struct {
	subscriber Subscriber
	buffer     int
	heartbeat  time.Duration
	logger     *zap.Logger
	done       chan struct{}
}

// NewEventsHandler constructs handler.
func NewEventsHandler(subscriber Subscriber, buffer int, heartbeat time.Duration, logger *zap.Logger) *EventsHandler {
	if buffer <= 0 {
		buffer = 64
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{subscriber: subscriber, buffer: buffer, heartbeat: heartbeat, logger: logger, done: make(chan struct{})}
}

// Close ends every open stream.
func (h *EventsHandler) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Stream GET /events/stream?kind=&department=&min_priority=&category=.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	pattern, err := parsePattern(c)
	if err != nil {
		return err
	}

	queue := make(chan events.Event, h.buffer)
	id := h.subscriber.Subscribe(pattern, func(_ context.Context, event events.Event) error {
		select {
		case queue <- event:
			return nil
		default:
			return errStreamLagging
		}
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.subscriber.Unsubscribe(id)
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		fmt.Fprintf(w, ": subscribed %s\n\n", id)
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case <-h.done:
				return
			case event := <-queue:
				payload, err := json.Marshal(event)
				if err != nil {
					h.logger.Warn("encode stream event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func parsePattern(c *fiber.Ctx) (events.Pattern, error) {
	var pattern events.Pattern
	if raw := c.Query("kind"); raw != "" {
		kind, ok := domain.ParseKind(raw)
		if !ok {
			return pattern, apperrors.NewInvalidKind(raw)
		}
		pattern.Kind = kind
	}
	pattern.Department = c.Query("department")
	if raw := c.Query("min_priority"); raw != "" {
		priority, ok := domain.ParsePriority(raw)
		if !ok {
			return pattern, apperrors.NewInvalidPriority(raw)
		}
		pattern.MinPriority = priority
	}
	for _, raw := range splitList(c.Query("category")) {
		category, ok := events.ParseCategory(raw)
		if !ok {
			return pattern, apperrors.NewValidationError("unknown category", map[string]any{"category": raw})
		}
		pattern.Categories = append(pattern.Categories, category)
	}
	return pattern, nil
}
