package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter пишет сообщения gorm в zap. SQL-запросы идут на уровне debug.
type GormAdapter struct {
	log           *zap.Logger
	slowThreshold time.Duration
}

// NewGormAdapter создаёт адаптер; slowThreshold = 0 отключает предупреждения о медленных запросах.
func NewGormAdapter(log *zap.Logger, slowThreshold time.Duration) *GormAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormAdapter{log: log.Named("gorm"), slowThreshold: slowThreshold}
}

// LogMode уровнем управляет zap, поэтому возвращаем себя.
func (a *GormAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *GormAdapter) Info(_ context.Context, msg string, data ...any) {
	a.log.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.log.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Error(_ context.Context, msg string, data ...any) {
	a.log.Error(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		a.log.Warn("query error",
			zap.String("sql", sql),
			zap.Int64("rows_affected", rows),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		a.log.Warn("slow query",
			zap.String("sql", sql),
			zap.Int64("rows_affected", rows),
			zap.Duration("elapsed", elapsed))
	default:
		a.log.Debug("sql query",
			zap.String("sql", sql),
			zap.Int64("rows_affected", rows),
			zap.Duration("elapsed", elapsed))
	}
}

var _ gormlogger.Interface = (*GormAdapter)(nil)
