package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

func TestResultLabel(t *testing.T) {
	tests := []struct {
		code core.ErrorCode
		want string
	}{
		{core.Success, "success"},
		{core.Success | core.InProgress, "partial"},
		{core.Unauthorized, "access-denied"},
		{core.NotFound, "not-found"},
		{core.AlreadyExists | core.Generic, "name-collision"},
		{core.Cancelled, "cancelled"},
		{core.Generic, "generic"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ResultLabel(tt.code))
		})
	}
}

func TestCollectorCountsEvents(t *testing.T) {
	bus := core.NewMemoryEventBus(zerolog.New(io.Discard))
	c := New()
	c.Subscribe(bus)
	ctx := context.Background()

	copyOp := core.OperationEventData{OperationID: "1", OperationType: core.OpCopy, Items: 2}
	moveOp := core.OperationEventData{OperationID: "2", OperationType: core.OpMove, Items: 1}

	require.NoError(t, bus.Publish(ctx, core.NewOperationStartedEvent(copyOp)))
	require.NoError(t, bus.Publish(ctx, core.NewOperationStartedEvent(moveOp)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.inFlight))

	require.NoError(t, bus.Publish(ctx, core.NewOperationFallbackEvent(copyOp, core.FallbackBypass)))
	require.NoError(t, bus.Publish(ctx, core.NewOperationCompletedEvent(copyOp, core.Success, 20*time.Millisecond)))
	require.NoError(t, bus.Publish(ctx, core.NewOperationFailedEvent(moveOp, core.Unauthorized, errors.New("denied"), time.Millisecond)))

	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("copy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("move", "access-denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbackTotal.WithLabelValues(core.FallbackBypass)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.operationDuration))

	c.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, core.NewOperationCompletedEvent(copyOp, core.Success, 0)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("copy", "success")))
}

func TestHandlerServesRegistry(t *testing.T) {
	c := New()
	c.fallbackTotal.WithLabelValues(core.FallbackPrivileged).Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `fsengine_fallback_total{kind="privileged"} 1`))
}
