package apperror

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kind - 파이프라인 단계별 에러 종류
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindLoad       Kind = "LoadError"
	KindGeneration Kind = "GenerationError"
	KindSynthesis  Kind = "SynthesisError"
	KindInternal   Kind = "InternalError"
)

// Error - kind, 메시지, 원인을 담는 애플리케이션 에러
type Error struct {
	Kind    Kind
	message string
	cause   error
	fields  logrus.Fields
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, message: message, fields: logrus.Fields{}}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return New(kind, message).WithCause(cause)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Load(cause error) *Error {
	return Wrap(KindLoad, "failed to load style image", cause)
}

func Generation(cause error) *Error {
	return Wrap(KindGeneration, "prompt rewriting failed", cause)
}

func Synthesis(cause error) *Error {
	return Wrap(KindSynthesis, "image synthesis failed", cause)
}

func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// WithCause - 원인 에러 추가
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithField - 로깅용 필드 추가
func (e *Error) WithField(key string, value interface{}) *Error {
	e.fields[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Fields - kind를 포함한 로깅 필드
func (e *Error) Fields() logrus.Fields {
	fields := logrus.Fields{"error_kind": string(e.Kind)}
	for k, v := range e.fields {
		fields[k] = v
	}
	return fields
}

// KindOf - 에러 체인에서 Kind 추출 (없으면 InternalError)
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is - err가 주어진 kind인지 확인
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
