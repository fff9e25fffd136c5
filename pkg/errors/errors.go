package errors

import (
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

// New 创建带堆栈的错误
func New(message string) error {
	return pkgerrors.New(message)
}

// NewWithReport 创建带堆栈的错误并上报
func NewWithReport(message string) error {
	err := pkgerrors.New(message)
	report(err)
	return err
}

func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// ErrorfAndReport 格式化创建错误并上报
func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

// Wrap returns nil when err is nil.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WrapAndReport returns nil when err is nil, so it is safe to use as the
// trailing return of a call chain.
func WrapAndReport(err error, message string) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.Wrap(err, message)
	report(err)
	return err
}

func WrapfAndReport(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.Wrapf(err, format, args...)
	report(err)
	return err
}

func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

func WithStackAndReport(err error) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.WithStack(err)
	report(err)
	return err
}

func WithMessage(err error, message string) error {
	return pkgerrors.WithMessage(err, message)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Cause 返回最底层的错误
func Cause(err error) error {
	return pkgerrors.Cause(err)
}
