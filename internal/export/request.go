// 包 export 实现数据导出：
// - BuildRequest：由表单输入构造查询（剔除 CSRF 字段，强制 dl=csv）
// - decodeResponse：在网络边界把响应一次性解码为文件流或结构化行
// - WriteCSV：旧版结构化响应在客户端生成 CSV
// - Exporter：串起以上步骤，所有失败都落到错误区域，不向调用方抛出
package export

import (
	"strings"

	"weather-dashboard/internal/model"
)

const (
	// FormatField 请求响应格式的参数名
	FormatField = "dl"
	// StreamFormat 要求服务端直接返回 CSV 文件流
	StreamFormat = "csv"
)

// BuildRequest 由表单输入构造导出请求。
// 名称与 csrfFields 中任一项（不区分大小写）相同的字段不会被转发。
func BuildRequest(inputs model.FormInputs, csrfFields []string) model.ExportRequest {
	kept := make(model.FormInputs, 0, len(inputs)+1)
	for _, f := range inputs {
		if isCSRF(f.Name, csrfFields) {
			continue
		}
		kept = append(kept, f)
	}
	kept = kept.Set(FormatField, StreamFormat)
	return model.ExportRequest{Fields: kept}
}

func isCSRF(name string, csrfFields []string) bool {
	for _, c := range csrfFields {
		if strings.EqualFold(strings.TrimSpace(name), c) {
			return true
		}
	}
	return false
}

// requestURL 将查询串拼接到端点上，保留端点已有的查询参数。
func requestURL(endpoint string, req model.ExportRequest) string {
	q := req.Encode()
	if q == "" {
		return endpoint
	}
	endpoint = strings.TrimRight(endpoint, "?&")
	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + q
	}
	return endpoint + "?" + q
}
