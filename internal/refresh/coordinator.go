// 包 refresh 实现页面重新可见时的自动刷新协调：
// 固定时间范围时不刷新，冷却期内不刷新，否则先写时间戳再重新加载。
// 持久化失败时一律按"没有上次刷新"处理。
package refresh

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"weather-dashboard/internal/logx"
	"weather-dashboard/internal/model"
)

// UpdatedNotice 为刷新后首次加载时的提示文案。
const UpdatedNotice = "Updated just now"

// Storage 为按源隔离的持久化键值，任意方法都可能失败。
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Notifier 展示一条在 ttl 后自动消失的提示。
type Notifier interface {
	Notify(msg string, ttl time.Duration)
}

// Reloader 触发一次完整的页面重新加载。
type Reloader interface {
	Reload(ctx context.Context) error
}

// Decision 为 OnVisible 的判定结果。
type Decision int

const (
	DecisionPinned Decision = iota
	DecisionCooldown
	DecisionReload
)

func (d Decision) String() string {
	switch d {
	case DecisionPinned:
		return "pinned"
	case DecisionCooldown:
		return "cooldown"
	case DecisionReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Options 为协调器参数，零值使用默认时长。
type Options struct {
	Storage  Storage
	Notifier Notifier
	Reloader Reloader
	Cooldown time.Duration
	Grace    time.Duration
	Notice   time.Duration
	// Now 为时钟，测试时注入
	Now func() time.Time
}

const (
	DefaultCooldown = 30 * time.Minute
	DefaultGrace    = 10 * time.Second
	DefaultNotice   = 3 * time.Second
)

// Coordinator 无内部可变状态，可被多个可见事件源共享。
type Coordinator struct {
	storage  Storage
	notifier Notifier
	reloader Reloader
	cooldown time.Duration
	grace    time.Duration
	notice   time.Duration
	now      func() time.Time
}

// New 创建协调器。
func New(o Options) *Coordinator {
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.Grace <= 0 {
		o.Grace = DefaultGrace
	}
	if o.Notice <= 0 {
		o.Notice = DefaultNotice
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Coordinator{
		storage:  o.Storage,
		notifier: o.Notifier,
		reloader: o.Reloader,
		cooldown: o.Cooldown,
		grace:    o.Grace,
		notice:   o.Notice,
		now:      o.Now,
	}
}

// Pinned 判断页面 URL 是否同时固定了起止日期。
func Pinned(page *url.URL) bool {
	if page == nil {
		return false
	}
	q := page.Query()
	return q.Get("start_date") != "" && q.Get("end_date") != ""
}

// OnVisible 在页面重新可见时调用。
func (c *Coordinator) OnVisible(ctx context.Context, page *url.URL) Decision {
	if Pinned(page) {
		logx.Debugf("时间范围已固定，跳过自动刷新")
		return DecisionPinned
	}
	now := c.now()
	if last, ok := c.readMs(ctx, model.KeyLastAutoRefresh); ok {
		if elapsed := now.Sub(time.UnixMilli(last)); elapsed < c.cooldown {
			logx.Debugf("距上次自动刷新 %s，未到冷却时间", elapsed.Truncate(time.Second))
			return DecisionCooldown
		}
	}

	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	c.write(ctx, model.KeyLastAutoRefresh, stamp)
	c.write(ctx, model.KeyJustRefreshed, stamp)

	logx.Infof("页面重新可见，自动刷新")
	if c.reloader != nil {
		if err := c.reloader.Reload(ctx); err != nil {
			logx.Warnf("重新加载失败：%v", err)
		}
	}
	return DecisionReload
}

// OnLoad 在每次页面加载时调用：宽限期内展示提示，并总是清除刷新标记。
// 返回是否展示了提示。
func (c *Coordinator) OnLoad(ctx context.Context) bool {
	shown := false
	if ts, ok := c.readMs(ctx, model.KeyJustRefreshed); ok {
		age := c.now().Sub(time.UnixMilli(ts))
		if age >= 0 && age <= c.grace {
			if c.notifier != nil {
				c.notifier.Notify(UpdatedNotice, c.notice)
			}
			shown = true
		}
	}
	if c.storage != nil {
		if err := c.storage.Remove(ctx, model.KeyJustRefreshed); err != nil {
			logx.Debugf("清除刷新标记失败：%v", err)
		}
	}
	return shown
}

// State 读取当前持久化状态，读取失败的字段为 0。
func (c *Coordinator) State(ctx context.Context) model.RefreshState {
	var st model.RefreshState
	st.LastAutoRefreshMs, _ = c.readMs(ctx, model.KeyLastAutoRefresh)
	st.JustRefreshedMs, _ = c.readMs(ctx, model.KeyJustRefreshed)
	return st
}

// readMs 读取毫秒时间戳；不存在、读取失败或无法解析时返回 false。
func (c *Coordinator) readMs(ctx context.Context, key string) (int64, bool) {
	if c.storage == nil {
		return 0, false
	}
	raw, ok, err := c.storage.Get(ctx, key)
	if err != nil {
		logx.Debugf("读取 %s 失败：%v", key, err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logx.Debugf("%s 无法解析：%q", key, raw)
		return 0, false
	}
	return v, true
}

func (c *Coordinator) write(ctx context.Context, key, value string) {
	if c.storage == nil {
		return
	}
	if err := c.storage.Set(ctx, key, value); err != nil {
		logx.Debugf("写入 %s 失败：%v", key, err)
	}
}
