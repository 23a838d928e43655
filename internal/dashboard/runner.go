// 包 dashboard 负责主流程编排：
// - 页面加载：消费刷新标记、抓取下载表单
// - 等待可见事件并交给刷新协调器判定
// - 一次性导出：合并页面表单与命令行字段后交给 Exporter
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"weather-dashboard/internal/config"
	"weather-dashboard/internal/deliver"
	"weather-dashboard/internal/export"
	"weather-dashboard/internal/fetch"
	"weather-dashboard/internal/form"
	"weather-dashboard/internal/logx"
	"weather-dashboard/internal/model"
	"weather-dashboard/internal/refresh"
)

// Options 为 Runner 的依赖。
type Options struct {
	Config    *config.Config
	Client    *fetch.Client
	Storage   refresh.Storage
	Notifier  refresh.Notifier
	Region    export.Region
	Deliverer deliver.Deliverer
	// Visible 每收到一次表示页面重新可见
	Visible <-chan struct{}
	// Reloader 为 nil 时在进程内重新加载页面
	Reloader refresh.Reloader
	// Page 为仪表盘页面地址，通常带 start_date/end_date 查询参数
	Page *url.URL
	Now  func() time.Time
}

// Runner 持有配置、HTTP 客户端与刷新协调器。
type Runner struct {
	cfg       *config.Config
	fetch     *fetch.Client
	coord     *refresh.Coordinator
	region    export.Region
	deliverer deliver.Deliverer
	visible   <-chan struct{}
	page      *url.URL
	reload    *lastReload

	mu   sync.Mutex
	form *form.Form
}

// New 创建 Runner。
func New(o Options) *Runner {
	r := &Runner{
		cfg:       o.Config,
		fetch:     o.Client,
		region:    o.Region,
		deliverer: o.Deliverer,
		visible:   o.Visible,
		page:      o.Page,
	}
	r.reload = &lastReload{next: o.Reloader}
	if r.reload.next == nil {
		r.reload.next = r
	}
	r.coord = refresh.New(refresh.Options{
		Storage:  o.Storage,
		Notifier: o.Notifier,
		Reloader: r.reload,
		Cooldown: o.Config.Refresh.Cooldown,
		Grace:    o.Config.Refresh.Grace,
		Notice:   o.Config.Refresh.Notice,
		Now:      o.Now,
	})
	return r
}

// Coordinator 返回内部的刷新协调器。
func (r *Runner) Coordinator() *refresh.Coordinator { return r.coord }

// lastReload 记下最近一次重新加载的错误。
type lastReload struct {
	next refresh.Reloader
	err  error
}

func (l *lastReload) Reload(ctx context.Context) error {
	l.err = l.next.Reload(ctx)
	return l.err
}

// Run 执行一次页面加载，然后在每次可见事件上判定是否刷新，直到 ctx 结束或事件源关闭。
// 重新加载失败时返回错误，不再继续监视。
func (r *Runner) Run(ctx context.Context) error {
	if r.page == nil {
		return errors.New("DASHBOARD.url is required to watch the dashboard")
	}
	r.load(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-r.visible:
			if !ok {
				return nil
			}
			r.reload.err = nil
			d := r.coord.OnVisible(ctx, r.page)
			logx.Debugf("可见事件判定：%s", d)
			if d == refresh.DecisionReload && r.reload.err != nil {
				return fmt.Errorf("reload dashboard: %w", r.reload.err)
			}
		}
	}
}

// Reload 为进程内重新加载：重新执行一次页面加载流程。
func (r *Runner) Reload(ctx context.Context) error {
	r.load(ctx)
	return nil
}

// load 对应一次全新的页面加载。
func (r *Runner) load(ctx context.Context) {
	if r.coord.OnLoad(ctx) {
		logx.Infof("刷新后首次加载")
	}
	if r.page == nil {
		return
	}
	f, err := form.Fetch(ctx, r.fetch, r.page.String(), r.cfg.Dashboard.FormSelector)
	if err != nil {
		logx.Warnf("加载仪表盘失败：%s 错误=%v", r.page, err)
		return
	}
	logx.Infof("%s 下载表单字段=%d", r.page, len(f.Inputs))
	r.mu.Lock()
	r.form = &f
	r.mu.Unlock()
}

// Form 返回最近一次加载得到的下载表单。
func (r *Runner) Form() (form.Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.form == nil {
		return form.Form{}, false
	}
	return *r.form, true
}

// Export 组装输入并执行一次导出。只有页面无法加载或没有可用端点时返回错误，
// 其余失败都展示在错误区域中。
func (r *Runner) Export(ctx context.Context, fromPage bool, fields model.FormInputs) error {
	var inputs model.FormInputs
	action := ""
	if fromPage {
		if r.page == nil {
			return errors.New("DASHBOARD.url is required to read the download form")
		}
		f, err := form.Fetch(ctx, r.fetch, r.page.String(), r.cfg.Dashboard.FormSelector)
		if err != nil {
			return fmt.Errorf("load dashboard form: %w", err)
		}
		inputs, action = f.Inputs, f.Action
	}
	for _, fd := range fields {
		inputs = inputs.Set(fd.Name, fd.Value)
	}
	endpoint := r.cfg.EndpointOr(action)
	if endpoint == "" {
		return errors.New("no export endpoint: set EXPORT.endpoint or use -from-page")
	}

	columns := export.FullColumns
	if r.cfg.Export.LegacyColumns {
		columns = export.LegacyColumns
	}
	export.New(export.Options{
		Client:     r.fetch,
		Endpoint:   endpoint,
		CSRFFields: r.cfg.Export.CSRFFields,
		Filename:   r.cfg.Export.Filename,
		Columns:    columns,
		Region:     r.region,
		Deliverer:  r.deliverer,
	}).Export(ctx, inputs)
	return nil
}

// PageURL 解析仪表盘地址并写入可选的起止日期。
func PageURL(raw, start, end string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard url: %w", err)
	}
	if start == "" && end == "" {
		return u, nil
	}
	q := u.Query()
	if start != "" {
		q.Set("start_date", start)
	}
	if end != "" {
		q.Set("end_date", end)
	}
	u.RawQuery = q.Encode()
	return u, nil
}
