package intent

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"secondbrain/internal/service/oracle"
	"secondbrain/pkg/metrics"
)

// Cause oracle 失败的分类，用于日志和指标
type Cause string

const (
	CauseUnavailable Cause = "unavailable"
	CauseTransport   Cause = "transport"
	CauseMalformed   Cause = "malformed"
)

type OracleError struct {
	Contract string
	Cause    Cause
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s oracle %s: %v", e.Contract, e.Cause, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// Result oracle 调用的结果，要么有值要么有错
type Result[T any] struct {
	Value T
	Err   *OracleError
}

func succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failed[T any](contract string, cause Cause, err error) Result[T] {
	return Result[T]{Err: &OracleError{Contract: contract, Cause: cause, Err: err}}
}

func transportFailure[T any](contract string, err error) Result[T] {
	if errors.Is(err, oracle.ErrUnavailable) {
		return failed[T](contract, CauseUnavailable, err)
	}
	return failed[T](contract, CauseTransport, err)
}

// Or 是唯一把失败结果换成 fallback 形状的地方
func (r Result[T]) Or(fallback T, logger *zap.Logger) T {
	if r.Err == nil {
		return r.Value
	}
	metrics.IncrementOracleFallback(r.Err.Contract, string(r.Err.Cause))
	logger.Warn("Oracle result replaced by fallback",
		zap.String("contract", r.Err.Contract),
		zap.String("cause", string(r.Err.Cause)),
		zap.Error(r.Err.Err),
	)
	return fallback
}
