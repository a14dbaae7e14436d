package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, ParseLevel("debug").Level())
	require.Equal(t, zapcore.ErrorLevel, ParseLevel("error").Level())
	require.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense").Level())
}

func TestNew(t *testing.T) {
	log, err := New(Config{LogLevel: "warn", ServiceName: "vision-qc"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestGormAdapter_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewGormAdapter(zap.New(core), 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	a.Trace(context.Background(), time.Now(), sql, nil)
	a.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	a.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	a.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	require.Equal(t, "sql query", entries[0].Message)
	require.Equal(t, "sql query", entries[1].Message)
	require.Equal(t, "query error", entries[2].Message)
	require.Equal(t, "slow query", entries[3].Message)
}
