// Package apperr 定义统一的错误分类
// 服务层返回的错误都归属于下列某一类，handler 据此映射 HTTP 状态码
package apperr

import (
	"errors"
	"fmt"
)

// 错误分类哨兵
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoTrainingData   = errors.New("no training data")
	ErrInsufficientData = errors.New("insufficient data")
	ErrConflict         = errors.New("conflict")
	ErrEvaluationFailed = errors.New("evaluation failed")
	ErrInternal         = errors.New("internal error")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// Error 带分类的错误
type Error struct {
	Kind error  // 分类哨兵
	Msg  string // 面向调用方的描述
	Err  error  // 底层原因，可为空
}

// Error 实现 error 接口
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap 同时展开分类与原因，errors.Is 对两者都成立
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New 创建指定分类的错误
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap 用指定分类包装底层错误
func Wrap(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation 参数校验错误
func Validation(format string, args ...any) *Error {
	return New(ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound 资源不存在
func NotFound(format string, args ...any) *Error {
	return New(ErrNotFound, fmt.Sprintf(format, args...))
}

// PermissionDenied 权限不足
func PermissionDenied(format string, args ...any) *Error {
	return New(ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// InsufficientData 数据量不足
func InsufficientData(format string, args ...any) *Error {
	return New(ErrInsufficientData, fmt.Sprintf(format, args...))
}

// Internal 内部错误
func Internal(msg string, err error) *Error {
	return Wrap(ErrInternal, msg, err)
}

// KindOf 返回错误所属分类，无法识别时归为 ErrInternal
// 具体分类先于 ErrNotFound 匹配，包装了 NotFound 原因的 ErrNoTrainingData 仍归为 ErrNoTrainingData
func KindOf(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrUnauthenticated,
		ErrPermissionDenied,
		ErrNoTrainingData,
		ErrInsufficientData,
		ErrNotFound,
		ErrConflict,
		ErrEvaluationFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
