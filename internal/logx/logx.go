// 包 logx 是对标准库 slog 的薄封装：
// - Init(Options) 配置级别/格式（pretty|json|text）/语言/颜色/输出
// - pretty 格式按语言输出等级标签，属性展平为 group.key=value
// - Debugf/Infof/Warnf/Errorf 为格式化输出，Debugw/Infow/Warnw 为键值输出
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
)

// Options 为日志初始化参数，零值即 info 级别的 pretty 英文输出到 stdout。
type Options struct {
	Level  string // debug|info|warn|error|off
	Format string // pretty|json|text
	Locale string // en|zh-CN
	Color  string // auto|always|never
	Output io.Writer
}

// levelOff 高于所有等级，用于静默。
const levelOff slog.Level = 100

// Init 根据 Options 初始化全局日志器。
func Init(o Options) {
	w := o.Output
	if w == nil {
		w = os.Stdout
	}
	lv := parseLevel(o.Level)
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(o.Format)) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = NewPrettyHandler(w, lv, o.Locale, o.Color)
	}
	slog.SetDefault(slog.New(h))
}

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

func Debugw(msg string, args ...any) { slog.Debug(msg, args...) }
func Infow(msg string, args ...any)  { slog.Info(msg, args...) }
func Warnw(msg string, args ...any)  { slog.Warn(msg, args...) }

// With 返回带固定属性的 logger，用于按来源（owner/connection）区分日志。
func With(args ...any) *slog.Logger { return slog.Default().With(args...) }

// PrettyHandler 为人读格式：时间 等级 消息 k=v...
type PrettyHandler struct {
	w      io.Writer
	level  slog.Level
	zh     bool
	color  bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string // 已打开的分组前缀，如 "req."
}

// NewPrettyHandler 创建 pretty Handler；locale 以 zh 开头时使用中文标签。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale, colorMode string) *PrettyHandler {
	if w == nil {
		w = os.Stdout
	}
	return &PrettyHandler{
		w:     w,
		level: lv,
		zh:    strings.HasPrefix(strings.ToLower(locale), "zh"),
		color: shouldColor(w, colorMode),
		mu:    &sync.Mutex{},
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
	lvl := h.label(r.Level)
	if h.color {
		lvl = colorize(lvl, r.Level)
	}
	buf.WriteString(lvl)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs 附加属性；键名带上当前分组前缀。
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	cp.attrs = append(cp.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(buf, p, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	s := a.Value.String()
	if strings.ContainsAny(s, " \t\"") {
		s = fmt.Sprintf("%q", s)
	}
	buf.WriteString(s)
}

func (h *PrettyHandler) label(l slog.Level) string {
	if h.zh {
		switch l {
		case slog.LevelDebug:
			return "[调试]"
		case slog.LevelInfo:
			return "[信息]"
		case slog.LevelWarn:
			return "[警告]"
		case slog.LevelError:
			return "[错误]"
		}
		return fmt.Sprintf("[L%d]", l)
	}
	switch l {
	case slog.LevelDebug:
		return "[DEBUG]"
	case slog.LevelInfo:
		return "[INFO]"
	case slog.LevelWarn:
		return "[WARN]"
	case slog.LevelError:
		return "[ERROR]"
	}
	return fmt.Sprintf("[L%d]", l)
}

// shouldColor 遵循 NO_COLOR 与 LOG_COLOR；auto 时仅在终端上启用。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return false
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
