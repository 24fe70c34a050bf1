package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

const (
	defaultDependencyTimeout = 5 * time.Second
	defaultRetryBackoff      = 200 * time.Millisecond
	respTimeLayout           = "2006-01-02T15:04:05Z07:00"
)

// dependencyPolicy 外部依赖（数据库、身份解析）调用策略：
// 每次调用都有超时；只有幂等读会在失败后退避重试一次，写操作从不自动重试。
type dependencyPolicy struct {
	timeout time.Duration
	backoff time.Duration
}

func newDependencyPolicy(cfg config.DependencyConfig) dependencyPolicy {
	p := dependencyPolicy{timeout: cfg.Timeout, backoff: cfg.RetryBackoff}
	if p.timeout <= 0 {
		p.timeout = defaultDependencyTimeout
	}
	if p.backoff <= 0 {
		p.backoff = defaultRetryBackoff
	}
	return p
}

// withTimeout 为一次依赖调用（或一个事务）派生超时上下文
func (p dependencyPolicy) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// readWithRetry 幂等读：超时 + 失败后退避重试一次。
// 记录不存在属于确定结果，不重试。
func readWithRetry[T any](ctx context.Context, p dependencyPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := p.withTimeout(ctx)
		v, err = fn(cctx)
		cancel()
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) || isDomainError(err) {
			return v, err
		}
		if attempt == 0 {
			select {
			case <-time.After(p.backoff):
			case <-ctx.Done():
				return v, err
			}
		}
	}
	return v, err
}

// classifyErr 把仓储层错误翻译为业务错误种类，已是 DomainError 的原样返回
func classifyErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.NotFound(entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &pkgerrors.DomainError{Kind: pkgerrors.ErrValidation, Entity: entity, ID: id, Detail: "记录已存在", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.ErrDependencyTimeout, entity, id, err)
	default:
		return pkgerrors.Wrap(pkgerrors.ErrDependencyUnavailable, entity, id, err)
	}
}

// isDependencyErr 是否为依赖故障（需记 Error 日志）
func isDependencyErr(err error) bool {
	return errors.Is(err, pkgerrors.ErrDependencyTimeout) || errors.Is(err, pkgerrors.ErrDependencyUnavailable)
}

func isDomainError(err error) bool {
	_, ok := pkgerrors.As(err)
	return ok
}

func formatTime(t time.Time) string {
	return t.Format(respTimeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(respTimeLayout)
}
