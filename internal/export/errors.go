package export

import (
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// 导出失败的分类，均通过 errors.Is 判断。
var (
	ErrTransport  = errors.New("transport failure")
	ErrValidation = errors.New("validation failed")
	ErrStatus     = errors.New("request failed")
	ErrMalformed  = errors.New("malformed response")
	ErrDelivery   = errors.New("delivery failed")
)

// FallbackMessage 在没有更具体信息时展示。
const FallbackMessage = "An error occurred"

// allFieldsKey 为非字段错误的键，渲染时不带前缀。
const allFieldsKey = "__all__"

// Failure 为一次导出的失败结果，Message 直接展示给用户。
type Failure struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Kind.Error() + ": " + f.Err.Error()
	}
	return f.Kind.Error() + ": " + f.Message
}

func (f *Failure) Unwrap() []error {
	if f.Err != nil {
		return []error{f.Kind, f.Err}
	}
	return []error{f.Kind}
}

// FieldError 为单个字段的错误信息列表。
type FieldError struct {
	Field    string
	Messages []string
}

// FieldErrors 保持服务端返回的字段顺序。
type FieldErrors []FieldError

// UnmarshalJSON 按出现顺序读取 {"field": ["msg", ...]}。
// 消息既可以是字符串，也可以是 {"message": "..."} 形式的对象；单个字符串也被接受。
// 不是对象的 errors 视为没有字段错误，不影响顶层 message。
func (fe *FieldErrors) UnmarshalJSON(b []byte) error {
	iter := jsoniter.ParseBytes(jsoniter.ConfigCompatibleWithStandardLibrary, b)
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		iter.Skip()
		*fe = nil
		return nil
	}
	var out FieldErrors
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		out = append(out, FieldError{Field: field, Messages: readMessages(it)})
		return true
	})
	if iter.Error != nil {
		return iter.Error
	}
	*fe = out
	return nil
}

func readMessages(it *jsoniter.Iterator) []string {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return []string{it.ReadString()}
	case jsoniter.ArrayValue:
		var msgs []string
		it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			if m, ok := readMessage(it); ok {
				msgs = append(msgs, m)
			}
			return true
		})
		return msgs
	default:
		it.Skip()
		return nil
	}
}

func readMessage(it *jsoniter.Iterator) (string, bool) {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return it.ReadString(), true
	case jsoniter.ObjectValue:
		var msg string
		found := false
		it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if key == "message" && it.WhatIsNext() == jsoniter.StringValue {
				msg, found = it.ReadString(), true
				return true
			}
			it.Skip()
			return true
		})
		return msg, found
	default:
		it.Skip()
		return "", false
	}
}

// FormatFieldErrors 每个字段一行："field: msg1, msg2"；__all__ 不带前缀。
func FormatFieldErrors(errs FieldErrors) string {
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.Join(e.Messages, ", ")
		if e.Field == allFieldsKey {
			lines = append(lines, msg)
			continue
		}
		lines = append(lines, e.Field+": "+msg)
	}
	return strings.Join(lines, "\n")
}

// errorBody 为失败响应（或 status=error 的信封）中的错误信息。
type errorBody struct {
	Message string      `json:"message"`
	Errors  FieldErrors `json:"errors"`
}

// message 依次取字段错误、顶层 message、固定兜底文案。
func (b errorBody) message() (string, error) {
	if len(b.Errors) > 0 {
		return FormatFieldErrors(b.Errors), ErrValidation
	}
	if strings.TrimSpace(b.Message) != "" {
		return b.Message, ErrStatus
	}
	return FallbackMessage, ErrStatus
}
