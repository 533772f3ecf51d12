package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// minimalEncoder renders log lines as a calm, single-line console format:
// "15:04:05  WARN  component  message  key=value key=value". It is not a
// themeable TUI encoder — the worker runs unattended under a dispatcher or
// cron, and its output is as likely to end up in a log file as a terminal.
type minimalEncoder struct {
	zapcore.Encoder // JSON encoder, used only to let zap satisfy the interface for field encoding helpers
	buf             *buffer.Buffer
}

const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorWarn   = "\x1b[38;5;214m"
	colorError  = "\x1b[38;5;167m"
	colorDim    = "\x1b[38;5;244m"
)

func newMinimalEncoder() *minimalEncoder {
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	final.AppendString(colorDim)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelTag(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorDim)
		final.AppendString(ent.LoggerName)
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	if kv := formatFields(fields); kv != "" {
		final.AppendString("  ")
		final.AppendString(kv)
	}

	final.AppendString("\n")
	return final, nil
}

func levelTag(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorWarn + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorError + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorError + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// formatFields renders structured fields as sorted "key=value" pairs. Field
// order is sorted rather than call order so the same log line always reads
// identically, which matters when diffing captured session output in tests.
func formatFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}
	kv := make([]string, 0, len(fields))
	for _, f := range fields {
		kv = append(kv, f.Key+"="+fieldValue(f))
	}
	sort.Strings(kv)
	return strings.Join(kv, " ")
}

func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", field.Integer != 0)
	default:
		if field.Interface != nil {
			return fmt.Sprintf("%v", field.Interface)
		}
		return ""
	}
}
