package blocks

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid 可用于 errors.Is 判断是否为区块校验失败。
var ErrInvalid = errors.New("invalid blocks")

// FieldError 描述某个区块字段的问题，Index 为 -1 时表示整体问题。
type FieldError struct {
	Index   int    `json:"index"`
	Type    string `json:"type,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError 汇总一次提交中所有区块的问题。
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return ErrInvalid.Error()
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		switch {
		case fe.Index < 0:
			parts = append(parts, fe.Message)
		case fe.Field == "":
			parts = append(parts, fmt.Sprintf("block %d (%s): %s", fe.Index, fe.Type, fe.Message))
		default:
			parts = append(parts, fmt.Sprintf("block %d (%s) %s: %s", fe.Index, fe.Type, fe.Field, fe.Message))
		}
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}
