package export

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"weather-dashboard/internal/deliver"
	"weather-dashboard/internal/fetch"
	"weather-dashboard/internal/logx"
	"weather-dashboard/internal/model"
)

// Region 为错误展示端口。
type Region interface {
	Clear()
	Show(msg string)
}

// Options 为 Exporter 的依赖与参数。
type Options struct {
	Client     *fetch.Client
	Endpoint   string
	CSRFFields []string
	// Filename 为服务端未给出文件名时的兜底，默认 weather_data.csv
	Filename  string
	Columns   []Column
	Region    Region
	Deliverer deliver.Deliverer
}

// Exporter 执行导出。并发调用互不串行化，错误区域以最后一次写入为准。
type Exporter struct {
	client    *fetch.Client
	endpoint  string
	csrf      []string
	filename  string
	columns   []Column
	region    Region
	deliverer deliver.Deliverer
}

// New 创建 Exporter。
func New(o Options) *Exporter {
	if o.Filename == "" {
		o.Filename = "weather_data.csv"
	}
	if len(o.Columns) == 0 {
		o.Columns = FullColumns
	}
	return &Exporter{
		client:    o.Client,
		endpoint:  o.Endpoint,
		csrf:      o.CSRFFields,
		filename:  o.Filename,
		columns:   o.Columns,
		region:    o.Region,
		deliverer: o.Deliverer,
	}
}

// Export 根据表单输入导出数据并交付文件；任何失败都只会展示在错误区域。
func (e *Exporter) Export(ctx context.Context, inputs model.FormInputs) {
	id := uuid.NewString()
	log := logx.With("request_id", id)
	defer func() {
		if r := recover(); r != nil {
			log.Error("导出异常", "panic", r)
			e.region.Show(FallbackMessage)
		}
	}()

	req := BuildRequest(inputs, e.csrf)
	e.region.Clear()

	res, err := e.fetch(ctx, req, id)
	if err != nil {
		e.fail(log, err)
		return
	}
	file, err := e.materialize(res)
	if err != nil {
		e.fail(log, err)
		return
	}
	loc, err := e.deliverer.Deliver(ctx, file)
	if err != nil {
		e.fail(log, &Failure{Kind: ErrDelivery, Message: FallbackMessage, Err: err})
		return
	}
	log.Info("导出完成", "kind", res.Kind.String(), "file", loc, "size", humanize.Bytes(uint64(len(file.Data))))
}

// fetch 向端点发出唯一一次请求并在边界完成解码。
func (e *Exporter) fetch(ctx context.Context, req model.ExportRequest, id string) (model.ExportResult, error) {
	target := requestURL(e.endpoint, req)
	logx.Debugf("请求导出：%s", target)
	resp, err := e.client.Do(ctx, target, http.Header{
		"X-Request-ID":     {id},
		"X-Requested-With": {"XMLHttpRequest"},
	})
	if err != nil {
		return model.ExportResult{}, &Failure{Kind: ErrTransport, Message: FallbackMessage, Err: err}
	}
	return decodeResponse(resp, e.filename)
}

// materialize 把解码结果变成待交付文件。
func (e *Exporter) materialize(res model.ExportResult) (deliver.File, error) {
	switch res.Kind {
	case model.KindStream:
		return deliver.File{Name: res.Stream.Filename, MediaType: CSVMediaType, Data: res.Stream.Data}, nil
	case model.KindRows:
		data, err := BuildCSV(res.Rows, e.columns)
		if err != nil {
			return deliver.File{}, &Failure{Kind: ErrMalformed, Message: FallbackMessage, Err: err}
		}
		return deliver.File{Name: e.filename, MediaType: CSVMediaType, Data: data}, nil
	default:
		return deliver.File{}, &Failure{Kind: ErrMalformed, Message: FallbackMessage}
	}
}

func (e *Exporter) fail(log *slog.Logger, err error) {
	msg := FallbackMessage
	var f *Failure
	if errors.As(err, &f) && f.Message != "" {
		msg = f.Message
	}
	log.Warn("导出失败", "error", err)
	e.region.Show(msg)
}
