// 命令行入口：
// - 解析 flags 与 settings.yaml（含 .env 覆盖）
// - 初始化日志、HTTP 客户端、持久化与交付目标
// - 一次性导出（-export）或监视仪表盘并按可见事件自动刷新（-watch）
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"weather-dashboard/internal/config"
	"weather-dashboard/internal/dashboard"
	"weather-dashboard/internal/deliver"
	"weather-dashboard/internal/fetch"
	"weather-dashboard/internal/logx"
	"weather-dashboard/internal/model"
	"weather-dashboard/internal/store"
	"weather-dashboard/internal/ui"
)

// fieldFlags 收集可重复的 -field name=value。
type fieldFlags model.FormInputs

func (f *fieldFlags) String() string {
	parts := make([]string, 0, len(*f))
	for _, fd := range *f {
		parts = append(parts, fd.Name+"="+fd.Value)
	}
	return strings.Join(parts, ",")
}

func (f *fieldFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	*f = fieldFlags(model.FormInputs(*f).Set(strings.TrimSpace(name), value))
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "settings.yaml", "path to settings.yaml")
		doExport   = flag.Bool("export", false, "run one export and exit")
		watch      = flag.Bool("watch", false, "watch the dashboard and auto-refresh when it becomes visible again")
		fromPage   = flag.Bool("from-page", false, "seed export fields from the dashboard download form")
		start      = flag.String("start", "", "start_date (YYYY-MM-DD)")
		end        = flag.String("end", "", "end_date (YYYY-MM-DD)")
		reset      = flag.Bool("reset", false, "clear persisted refresh state")
		status     = flag.Bool("status", false, "print persisted refresh state and exit")
		fields     fieldFlags
	)
	flag.Var(&fields, "field", "extra export field name=value (repeatable)")
	flag.Parse()

	if !*doExport && !*watch && !*reset && !*status {
		flag.Usage()
		os.Exit(2)
	}

	// 1) 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// 2) 初始化日志：级别/格式/语言/颜色
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	// 3) 初始化 HTTP 客户端（含代理与重试）
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.Export.Timeout,
		Retry:      cfg.Retry,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, err := dashboard.PageURL(cfg.Dashboard.URL, *start, *end)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// 4) 持久化：按源隔离的刷新状态
	backend, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer backend.Close()
	scoped := store.Scope(backend, store.Origin(page))

	if *reset {
		if err := backend.Reset(ctx); err != nil {
			logx.Warnf("清理刷新状态失败：%v", err)
		} else {
			logx.Infof("已清理刷新状态（%s）", cfg.Storage.Type)
		}
	}

	// 5) 交付目标与提示
	target, err := openTarget(ctx, cfg.Delivery)
	if err != nil {
		log.Fatalf("delivery: %v", err)
	}
	deliverer, err := deliver.Select(target)
	if err != nil {
		log.Fatalf("delivery: %v", err)
	}
	region := ui.NewRegion(os.Stderr)
	notice := ui.NewNotice(os.Stdout)
	defer notice.Wait()

	opts := dashboard.Options{
		Config:    cfg,
		Client:    cl,
		Storage:   scoped,
		Notifier:  notice,
		Region:    region,
		Deliverer: deliverer,
		Visible:   dashboard.Signals(ctx),
		Page:      page,
	}
	// soft 模式下 Reloader 留空，由 Runner 在进程内重新加载
	if cfg.Refresh.Reload == "exec" {
		opts.Reloader = dashboard.ExecReloader{}
	}
	run := dashboard.New(opts)

	if *status {
		st := run.Coordinator().State(ctx)
		fmt.Printf("origin=%s lastAutoRefresh=%s justRefreshed=%s\n",
			scoped.Origin(), fmtMs(st.LastAutoRefreshMs), fmtMs(st.JustRefreshedMs))
		return
	}

	if *doExport {
		if err := run.Export(ctx, *fromPage, model.FormInputs(fields)); err != nil {
			logx.Errorf("导出失败：%v", err)
			os.Exit(1)
		}
		if region.Message() != "" {
			os.Exit(1)
		}
		return
	}

	if *watch {
		logx.Infof("开始监视：%s（kill -USR1 %d 模拟页面重新可见）", page, os.Getpid())
		if err := run.Run(ctx); err != nil {
			logx.Errorf("运行失败：%v", err)
			os.Exit(1)
		}
	}
}

// openTarget 按 DELIVERY.type 打开交付目标，具体能力由 deliver.Select 探测。
func openTarget(ctx context.Context, d config.Delivery) (any, error) {
	switch d.Type {
	case "bucket":
		return deliver.NewBucket(ctx, deliver.BucketOptions{
			Endpoint:  d.Bucket.Endpoint,
			AccessKey: d.Bucket.AccessKey,
			SecretKey: d.Bucket.SecretKey,
			UseTLS:    d.Bucket.UseTLS,
			Region:    d.Bucket.Region,
			Bucket:    d.Bucket.Name,
			Prefix:    d.Bucket.Prefix,
		})
	default:
		return deliver.NewDir(d.Dir)
	}
}

func fmtMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}
