package export

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"weather-dashboard/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope 为旧版结构化响应：{status, data} 或 {status, message, errors}。
type envelope struct {
	Status  string            `json:"status"`
	Data    []model.SensorRow `json:"data"`
	Message string            `json:"message"`
	Errors  FieldErrors       `json:"errors"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// decodeResponse 在网络边界把响应解码为 ExportResult；失败一律返回 *Failure。
// 变体只由声明的 Content-Type 决定，不根据内容猜测。
func decodeResponse(resp *http.Response, fallbackName string) (model.ExportResult, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ExportResult{}, &Failure{Kind: ErrTransport, Status: resp.StatusCode, Message: FallbackMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err != nil {
			return model.ExportResult{}, &Failure{Kind: ErrStatus, Status: resp.StatusCode, Message: FallbackMessage,
				Err: fmt.Errorf("http status %s", resp.Status)}
		}
		msg, kind := eb.message()
		return model.ExportResult{}, &Failure{Kind: kind, Status: resp.StatusCode, Message: msg}
	}

	if isStream(resp.Header.Get("Content-Type")) {
		return model.ExportResult{
			Kind: model.KindStream,
			Stream: &model.StreamFile{
				Data:     body,
				Filename: filenameOr(resp.Header.Get("Content-Disposition"), fallbackName),
			},
		}, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.ExportResult{}, &Failure{Kind: ErrMalformed, Status: resp.StatusCode, Message: FallbackMessage, Err: err}
	}
	switch env.Status {
	case statusSuccess:
		return model.ExportResult{Kind: model.KindRows, Rows: env.Data}, nil
	case statusError:
		msg, kind := errorBody{Message: env.Message, Errors: env.Errors}.message()
		return model.ExportResult{}, &Failure{Kind: kind, Status: resp.StatusCode, Message: msg}
	default:
		return model.ExportResult{}, &Failure{Kind: ErrMalformed, Status: resp.StatusCode, Message: FallbackMessage,
			Err: fmt.Errorf("unexpected status %q", env.Status)}
	}
}

// isStream 判断声明的媒体类型是否为文件流（CSV 或通用二进制）。
func isStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.Contains(mt, "csv") || mt == "application/octet-stream"
}

// filenameOr 取 Content-Disposition 中的文件名（仅保留基本名），缺失时使用 fallback。
func filenameOr(disposition, fallback string) string {
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}
	name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
