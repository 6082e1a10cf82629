package cli

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newAgentLogger returns a JSON debug logger on stderr tagged with the run id,
// or a no-op logger unless --verbose is set.
func newAgentLogger(globals *Globals, command string) (*zap.Logger, string) {
	runID := uuid.NewString()
	if globals == nil || !globals.Verbose || globals.Stderr == nil {
		return zap.NewNop(), runID
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(globals.Stderr)),
		zap.NewAtomicLevelAt(zap.DebugLevel),
	)
	return zap.New(core).With(zap.String("command", command), zap.String("watch_id", runID)), runID
}
