package engine

import "fmt"

// ErrorCode is a formula-level error value, distinct from AppError which
// signals a misuse of the Engine API itself.
type ErrorCode uint8

const (
	ErrorDivZero ErrorCode = iota + 1
	ErrorName
	ErrorValue
	ErrorRef
	ErrorNum
	ErrorNA
	ErrorCycle
	ErrorParse
)

var errorCodeText = map[ErrorCode]string{
	ErrorDivZero: "#DIV/0!",
	ErrorName:    "#NAME?",
	ErrorValue:   "#VALUE!",
	ErrorRef:     "#REF!",
	ErrorNum:     "#NUM!",
	ErrorNA:      "#N/A",
	ErrorCycle:   "#CYCLE!",
	ErrorParse:   "#PARSE!",
}

// CellError is a formula error value, stored and propagated as a value in
// the value domain, never thrown.
type CellError struct {
	Code    ErrorCode
	Message string
}

func (e *CellError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return errorCodeText[e.Code]
}

func NewCellError(code ErrorCode, message string) *CellError {
	if message == "" {
		message = errorCodeText[code]
	}
	return &CellError{Code: code, Message: message}
}

// AppErrorCode mirrors gRPC-style status codes for Engine API misuse,
// distinct from the formula ErrorCode taxonomy above.
type AppErrorCode int

const (
	OK AppErrorCode = 0

	Unknown            AppErrorCode = 2
	InvalidArgument    AppErrorCode = 3
	NotFound           AppErrorCode = 5
	AlreadyExists      AppErrorCode = 6
	FailedPrecondition AppErrorCode = 9
	OutOfRange         AppErrorCode = 11
	Internal           AppErrorCode = 13
)

// AppError signals invalid use of the Engine surface (bad address, unknown
// sheet, invariant violation) — never a formula-level error value.
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code AppErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}
