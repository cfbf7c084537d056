package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"printledger/internal/errs"
)

// 所有写方法都接收调用方的事务 tx，传 nil 时使用默认连接
func pick(db, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return db
	}
	return tx
}

// notFound 把 gorm.ErrRecordNotFound 统一转换成 errs.ErrNotFound
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, errs.ErrNotFound)
	}
	return err
}

// IsDuplicateKey 唯一索引冲突
// 开启 TranslateError 后驱动会返回 gorm.ErrDuplicatedKey，错误文本匹配兜底
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
