// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置
// - pretty 输出带本地化等级标签（[信息]/[INFO] 等）
// - 对外只暴露 Debugf/Infof/Warnf/Errorf，业务代码不直接依赖 slog
package logx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Init 使用标准输出初始化全局日志器。
func Init(level, format, locale, colorMode string) {
	InitWriter(os.Stdout, level, format, locale, colorMode)
}

// InitWriter 与 Init 相同，但输出到 w。
func InitWriter(w io.Writer, level, format, locale, colorMode string) {
	lv := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty", "":
		handler = NewPrettyHandler(w, lv, locale, colorMode)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// levelOff 高于所有等级，用于静默输出。
const levelOff slog.Level = 100

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return levelOff
	default:
		return slog.LevelInfo
	}
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// With 返回附带固定属性的 logger，用于单次导出等需要关联 ID 的场景。
func With(args ...any) *slog.Logger { return slog.Default().With(args...) }

// PrettyHandler 面向人读的单行输出：时间 等级 消息 k=v...
type PrettyHandler struct {
	w      io.Writer
	level  slog.Level
	locale string
	color  bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

// NewPrettyHandler 创建 PrettyHandler，locale 为空时使用 zh-CN。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale, colorMode string) *PrettyHandler {
	if w == nil {
		w = os.Stdout
	}
	if locale == "" {
		locale = "zh-CN"
	}
	return &PrettyHandler{
		w:      w,
		level:  lv,
		locale: locale,
		color:  shouldColor(w, colorMode),
		mu:     &sync.Mutex{},
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.level < levelOff && l >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("2006-01-02 15:04:05"))
	buf.WriteByte(' ')
	lvl := levelLabel(h.locale, r.Level)
	if h.color {
		lvl = colorize(lvl, r.Level)
	}
	buf.WriteString(lvl)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		buf.WriteByte(' ')
		if h.group != "" {
			buf.WriteString(h.group)
			buf.WriteByte('.')
		}
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(a.Value.String())
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	cp := *h
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group += "." + name
	}
	return &cp
}

func levelLabel(locale string, l slog.Level) string {
	zh := strings.HasPrefix(strings.ToLower(locale), "zh")
	switch l {
	case slog.LevelDebug:
		return pick(zh, "[调试]", "[DEBUG]")
	case slog.LevelInfo:
		return pick(zh, "[信息]", "[INFO]")
	case slog.LevelWarn:
		return pick(zh, "[警告]", "[WARN]")
	case slog.LevelError:
		return pick(zh, "[错误]", "[ERROR]")
	default:
		return fmt.Sprintf("[L%d]", l)
	}
}

func pick(zh bool, a, b string) string {
	if zh {
		return a
	}
	return b
}

// shouldColor 遵循 NO_COLOR 与 LOG_COLOR（auto|always|never）。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		return IsTerminal(w)
	default:
		return false
	}
}

// IsTerminal 判断 w 是否为终端（含 Cygwin/MSYS 终端）。
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorize(s string, l slog.Level) string {
	code := "0"
	switch l {
	case slog.LevelDebug:
		code = "90"
	case slog.LevelInfo:
		code = "36"
	case slog.LevelWarn:
		code = "33"
	case slog.LevelError:
		code = "31"
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
