// 包 model 定义导出请求、导出结果、传感器记录与刷新状态等数据模型。
package model

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Field 为表单中的单个字段（保持提交顺序，允许重名，如多选）。
type Field struct {
	Name  string
	Value string
}

// FormInputs 为有序的表单输入。
type FormInputs []Field

// Set 覆盖首个同名字段并删除其余同名字段；不存在时追加到末尾。
func (in FormInputs) Set(name, value string) FormInputs {
	out := make(FormInputs, 0, len(in)+1)
	done := false
	for _, f := range in {
		if f.Name != name {
			out = append(out, f)
			continue
		}
		if !done {
			out = append(out, Field{Name: name, Value: value})
			done = true
		}
	}
	if !done {
		out = append(out, Field{Name: name, Value: value})
	}
	return out
}

// Get 返回首个同名字段的值。
func (in FormInputs) Get(name string) (string, bool) {
	for _, f := range in {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// ExportRequest 为发往导出端点的查询参数（有序）。
// 构造方只能是 export.BuildRequest：CSRF 字段已剔除，dl 字段已强制设置。
type ExportRequest struct {
	Fields []Field
}

// Get 返回首个同名参数的值。
func (r ExportRequest) Get(name string) (string, bool) {
	return FormInputs(r.Fields).Get(name)
}

// Has 判断参数是否存在。
func (r ExportRequest) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Encode 按字段顺序编码为 URL 查询串（空格编码为 '+'）。
func (r ExportRequest) Encode() string {
	var b strings.Builder
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// ResultKind 标记导出结果的变体。
type ResultKind int

const (
	KindStream ResultKind = iota + 1 // 服务端直接返回文件流
	KindRows                         // 旧版结构化 JSON，需要客户端生成 CSV
)

func (k ResultKind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindRows:
		return "rows"
	default:
		return "unknown"
	}
}

// StreamFile 为文件流响应：不透明的字节与建议文件名。
type StreamFile struct {
	Data     []byte
	Filename string
}

// ExportResult 为成功响应解码后的结果，Kind 决定 Stream 与 Rows 中哪一个有效。
type ExportResult struct {
	Kind   ResultKind
	Stream *StreamFile
	Rows   []SensorRow
}

// SensorRow 为一条传感器读数。
type SensorRow struct {
	ID             int64    `json:"id"`
	JD             *float64 `json:"jd"`
	Temperature    *float64 `json:"temperature"`
	SkyTemperature *float64 `json:"sky_temperature"`
	BoxTemperature *float64 `json:"box_temperature"`
	Pressure       *float64 `json:"pressure"`
	Humidity       *float64 `json:"humidity"`
	Illuminance    *float64 `json:"illuminance"`
	WindSpeed      *float64 `json:"wind_speed"`
	Rain           *float64 `json:"rain"`
	IsRaining      Flag     `json:"is_raining"`
	CO2            *float64 `json:"co2"`
	TVOC           *float64 `json:"tvoc"`
	Note           string   `json:"note"`
	Merged         Flag     `json:"merged"`
	AddedOn        string   `json:"added_on"`
	LastModified   string   `json:"last_modified"`
}

// Flag 为可空布尔值，兼容 JSON 中的 true/false 与 0/1。
type Flag struct {
	Valid bool
	Value bool
}

// UnmarshalJSON 接受 true/false、数字（非 0 即真）、带引号的同类值与 null。
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	switch strings.ToLower(s) {
	case "null", "":
		*f = Flag{}
		return nil
	case "true":
		*f = Flag{Valid: true, Value: true}
		return nil
	case "false":
		*f = Flag{Valid: true, Value: false}
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flag: invalid value %q", s)
	}
	*f = Flag{Valid: true, Value: n != 0}
	return nil
}

// MarshalJSON 输出 true/false 或 null。
func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatBool(f.Value)), nil
}

// String 为 CSV 输出使用的文本形式，空值输出空串。
func (f Flag) String() string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatBool(f.Value)
}

// 持久化键名（按源隔离的本地存储）。
const (
	KeyLastAutoRefresh = "lastAutoRefreshTs"
	KeyJustRefreshed   = "justRefreshedTs"
)

// RefreshState 为协调器持久化的两个时间戳（毫秒），0 表示不存在。
type RefreshState struct {
	LastAutoRefreshMs int64
	JustRefreshedMs   int64
}
