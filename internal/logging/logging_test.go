package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
	reqid "github.com/hanpama/graphedge/internal/reqid"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info", "json")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", zap.Int("n", 1))
	require.NoError(t, logger.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
	require.Equal(t, "info", line["level"])
	require.EqualValues(t, 1, line["n"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", "json")
	require.Error(t, err)
	_, err = New("info", "xml")
	require.Error(t, err)
	_, err = New("debug", "console")
	require.NoError(t, err)
}

func TestSubscribeLogsEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	core, logs := observer.New(zapcore.DebugLevel)
	unsubscribe := Subscribe(zap.New(core))

	ctx, id := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.QueryCacheLookup{Hit: true})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Err: errors.New("engine down")})
	eventbus.Publish(ctx, events.StreamFinish{Mode: "multipart", Payloads: 2})
	eventbus.Publish(ctx, events.HTTPFinish{Request: httptest.NewRequest("POST", "/graphql", nil), Status: 500, Bytes: 52})

	entries := logs.All()
	require.Len(t, entries, 4)
	require.Equal(t, "query cache lookup", entries[0].Message)
	require.Equal(t, true, entries[0].ContextMap()["hit"])

	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, "engine down", entries[1].ContextMap()["error"])

	require.EqualValues(t, 2, entries[2].ContextMap()["payloads"])

	fields := entries[3].ContextMap()
	require.Equal(t, "/graphql", fields["path"])
	require.EqualValues(t, 500, fields["status"])
	require.EqualValues(t, 52, fields["bytes"])
	require.Equal(t, reqid.String(id), fields["request_id"])

	unsubscribe()
	eventbus.Publish(ctx, events.QueryCacheLookup{})
	require.Equal(t, 4, logs.Len())
}
