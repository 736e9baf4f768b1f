package id

import (
	"github.com/google/uuid"
)

// New 随机 UUIDv4，用于请求 ID
func New() string {
	return uuid.NewString()
}

// NewOrdered 对话、消息和文档 ID；UUIDv7 按生成时间排序，失败时退回 v4
func NewOrdered() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// IsValid 判断是否为合法 UUID
func IsValid(s string) bool {
	return uuid.Validate(s) == nil
}
