package logger

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	records []slog.Record
}

func (s *recordSink) Enabled(context.Context, slog.Level) bool { return true }
func (s *recordSink) Handle(_ context.Context, r slog.Record) error {
	s.records = append(s.records, r)
	return nil
}
func (s *recordSink) WithAttrs([]slog.Attr) slog.Handler { return s }
func (s *recordSink) WithGroup(string) slog.Handler      { return s }

func captureRecords(t *testing.T) *recordSink {
	t.Helper()
	sink := &recordSink{}
	prev := slog.Default()
	slog.SetDefault(slog.New(sink))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return sink
}

func attrValue(r slog.Record, key string) (string, bool) {
	var val string
	var found bool
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			val = a.Value.String()
			found = true
			return false
		}
		return true
	})
	return val, found
}

func TestLogQuery(t *testing.T) {
	sink := captureRecords(t)

	LogQuery("exec", "UPDATE products SET current_price = ?", 3*time.Millisecond, nil)
	LogQuery("query", "SELECT 1", time.Millisecond, fmt.Errorf("connection reset"))

	require.Len(t, sink.records, 2)

	ok := sink.records[0]
	assert.Equal(t, slog.LevelDebug, ok.Level)
	assert.Equal(t, "Query executed", ok.Message)
	typ, _ := attrValue(ok, "type")
	assert.Equal(t, "db", typ)
	op, _ := attrValue(ok, "operation")
	assert.Equal(t, "exec", op)

	failed := sink.records[1]
	assert.Equal(t, slog.LevelError, failed.Level)
	assert.Equal(t, "Query failed", failed.Message)
	_, hasErr := attrValue(failed, "error")
	assert.True(t, hasErr)
}

func TestLogSystemAndLogError(t *testing.T) {
	sink := captureRecords(t)

	LogSystem("Monitoring engine started", slog.String("driver", "sqlite"))
	LogError("Storage initialization failed", fmt.Errorf("no such host"))

	require.Len(t, sink.records, 2)

	sys := sink.records[0]
	assert.Equal(t, slog.LevelInfo, sys.Level)
	typ, _ := attrValue(sys, "type")
	assert.Equal(t, "sys", typ)
	driver, _ := attrValue(sys, "driver")
	assert.Equal(t, "sqlite", driver)

	errRec := sink.records[1]
	assert.Equal(t, slog.LevelError, errRec.Level)
	typ, _ = attrValue(errRec, "type")
	assert.Equal(t, "error", typ)
}
