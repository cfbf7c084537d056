package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// zapGormLogger 把 gorm 的日志转到 zap
type zapGormLogger struct {
	log           *zap.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger level 取 gorm 的 Silent/Error/Warn/Info，慢查询在 Warn 级别输出
func NewGormLogger(log *zap.Logger, level logger.LogLevel, slowThreshold time.Duration) logger.Interface {
	return &zapGormLogger{
		log:           log.Named("gorm").WithOptions(zap.AddCallerSkip(3)),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (l *zapGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zapGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *zapGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *zapGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.log.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace 每条 SQL 执行后调用
// 记录不存在是正常分支不输出；唯一索引冲突是并发重复请求的正常结果，降为 Warn
func (l *zapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() []zap.Field {
		sql, rows := fc()
		return []zap.Field{
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		}
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if l.level >= logger.Warn {
				l.log.Warn("唯一索引冲突", append(fields(), zap.Error(err))...)
			}
			return
		}
		l.log.Error("SQL 执行失败", append(fields(), zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		l.log.Warn("慢查询", append(fields(), zap.Duration("threshold", l.slowThreshold))...)
	case l.level >= logger.Info:
		l.log.Debug("SQL", fields()...)
	}
}
