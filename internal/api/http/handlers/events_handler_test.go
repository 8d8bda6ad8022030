package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/events"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	patterns     []events.Pattern
	handlers     []events.EventHandler
	unsubscribed []events.SubscriptionID
}

func (f *fakeSubscriber) Subscribe(pattern events.Pattern, handler events.EventHandler) events.SubscriptionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	f.handlers = append(f.handlers, handler)
	return events.SubscriptionID("sub-1")
}

func (f *fakeSubscriber) Unsubscribe(id events.SubscriptionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, id)
	return true
}

func newStreamApp(h *EventsHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Get("/events/stream", h.Stream)
	return app
}

func TestStreamRejectsBadFilters(t *testing.T) {
	sub := &fakeSubscriber{}
	app := newStreamApp(NewEventsHandler(sub, 4, time.Second, nil))

	tests := []struct {
		query string
		code  string
	}{
		{query: "kind=parking", code: apperrors.CodeInvalidKind},
		{query: "min_priority=urgent", code: apperrors.CodeInvalidPriority},
		{query: "category=user,broadcast", code: apperrors.CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/events/stream?"+tt.query, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, string(body))
		})
	}
	assert.Empty(t, sub.patterns, "nothing subscribed for rejected filters")
}

func TestStreamSubscribesWithPattern(t *testing.T) {
	sub := &fakeSubscriber{}
	h := NewEventsHandler(sub, 1, time.Second, nil)
	h.Close()
	app := newStreamApp(h)

	req := httptest.NewRequest(http.MethodGet, "/events/stream?kind=complaint&department=roads&min_priority=high&category=system,circular", nil)
	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), ": subscribed sub-1")

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.patterns, 1)
	assert.Equal(t, events.Pattern{
		Kind:        domain.KindComplaint,
		Department:  "roads",
		MinPriority: domain.PriorityHigh,
		Categories:  []events.Category{events.CategorySystem, events.CategoryCircular},
	}, sub.patterns[0])
	assert.Equal(t, []events.SubscriptionID{"sub-1"}, sub.unsubscribed)

	handler := sub.handlers[0]
	assert.NoError(t, handler(context.Background(), events.Event{ID: "1"}))
	assert.ErrorIs(t, handler(context.Background(), events.Event{ID: "2"}), errStreamLagging, "full buffer drops instead of blocking")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}
