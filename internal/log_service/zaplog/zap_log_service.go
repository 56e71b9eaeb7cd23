package zaplog

import (
	"sort"

	"github.com/AnishMulay/sandfs/internal/log_service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogService forwards log events to a zap logger. Metadata entries become
// structured fields.
type ZapLogService struct {
	logger *zap.Logger
	nodeID string
}

func NewZapLogService(logger *zap.Logger, nodeID string) *ZapLogService {
	return &ZapLogService{logger: logger, nodeID: nodeID}
}

// NewProductionZapLogService builds a JSON logger on stderr at the given
// minimum level.
func NewProductionZapLogService(nodeID string, minLevel string) (*ZapLogService, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(minLevel))
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogService(logger, nodeID), nil
}

// NewNopZapLogService discards everything.
func NewNopZapLogService() *ZapLogService {
	return NewZapLogService(zap.NewNop(), "")
}

func zapLevel(level string) zapcore.Level {
	switch log_service.GetLevelValue(level) {
	case log_service.DebugLevelValue:
		return zapcore.DebugLevel
	case log_service.WarnLevelValue:
		return zapcore.WarnLevel
	case log_service.ErrorLevelValue:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *ZapLogService) fields(event log_service.LogEvent) []zap.Field {
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+2)
	if z.nodeID != "" {
		fields = append(fields, zap.String("node", z.nodeID))
	}
	if !event.Timestamp.IsZero() {
		fields = append(fields, zap.Time("eventTime", event.Timestamp))
	}
	for _, k := range keys {
		fields = append(fields, zap.Any(k, event.Metadata[k]))
	}
	return fields
}

func (z *ZapLogService) Debug(event log_service.LogEvent) {
	z.logger.Debug(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Info(event log_service.LogEvent) {
	z.logger.Info(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Warn(event log_service.LogEvent) {
	z.logger.Warn(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Error(event log_service.LogEvent) {
	z.logger.Error(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Sync() error {
	return z.logger.Sync()
}

var _ log_service.LogService = (*ZapLogService)(nil)
