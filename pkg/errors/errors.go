package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ── 错误种类（调用方用 errors.Is 判断） ──

var (
	ErrValidation             = errors.New("参数校验失败")
	ErrNotFound               = errors.New("记录不存在")
	ErrInvalidStateTransition = errors.New("当前状态不允许该操作")
	ErrIdentityNotFound       = errors.New("未匹配到在职员工")
	ErrNoOpenCheckIn          = errors.New("当日无进场记录")
	ErrDependencyTimeout      = errors.New("依赖服务超时")
	ErrDependencyUnavailable  = errors.New("依赖服务不可用")
)

// DomainError 携带错误种类与出错对象，便于调用方渲染具体提示
type DomainError struct {
	Kind   error  // 上面的错误种类之一
	Entity string // dispatch_request | gate_pass | transport_job | vehicle | attendance | employee ...
	ID     string // 出错对象 ID（可为空）
	Detail string
	Err    error // 底层错误（可为空）
}

// Error 实现 error 接口
func (e *DomainError) Error() string {
	msg := e.Kind.Error()
	if e.Entity != "" {
		msg += fmt.Sprintf(" [%s", e.Entity)
		if e.ID != "" {
			msg += "=" + e.ID
		}
		msg += "]"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 同时暴露错误种类与底层错误
func (e *DomainError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// New 创建 DomainError
func New(kind error, entity, id, detail string) *DomainError {
	return &DomainError{Kind: kind, Entity: entity, ID: id, Detail: detail}
}

// Wrap 以给定种类包装底层错误
func Wrap(kind error, entity, id string, err error) *DomainError {
	return &DomainError{Kind: kind, Entity: entity, ID: id, Err: err}
}

// Validation 参数校验错误
func Validation(entity, id, detail string) *DomainError {
	return New(ErrValidation, entity, id, detail)
}

// NotFound 记录不存在
func NotFound(entity, id string) *DomainError {
	return New(ErrNotFound, entity, id, "")
}

// InvalidTransition 非法状态迁移
func InvalidTransition(entity, id string, from, to any) *DomainError {
	return New(ErrInvalidStateTransition, entity, id, fmt.Sprintf("%v → %v", from, to))
}

// As 提取 DomainError
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
