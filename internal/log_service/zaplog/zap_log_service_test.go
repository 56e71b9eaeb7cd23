package zaplog

import (
	"testing"

	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogService_Fields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ls := NewZapLogService(zap.New(core), "node1")

	ls.Debug(log_service.LogEvent{Message: "hidden"})
	ls.Info(log_service.LogEvent{
		Message:  "created",
		Metadata: map[string]any{"path": "/a", "inum": 3},
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "created", entry.Message)

	ctx := entry.ContextMap()
	require.Equal(t, "node1", ctx["node"])
	require.Equal(t, "/a", ctx["path"])
	require.EqualValues(t, 3, ctx["inum"])
}
