// 包 form 从仪表盘页面解析下载表单：
// - 依据 CSS 选择器定位表单（默认 #download-data-form）
// - 按文档顺序收集 input/select/textarea 的当前值，语义与浏览器 FormData 一致
// - 将 action 解析为绝对 URL
package form

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"weather-dashboard/internal/fetch"
	"weather-dashboard/internal/model"
)

// Form 为解析得到的表单。
type Form struct {
	Action string
	Inputs model.FormInputs
}

// Fetch 加载页面并解析表单。
func Fetch(ctx context.Context, cl *fetch.Client, pageURL, selector string) (Form, error) {
	resp, err := cl.Get(ctx, pageURL)
	if err != nil {
		return Form{}, fmt.Errorf("GET dashboard page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	return Parse(io.LimitReader(resp.Body, 4<<20), pageURL, selector)
}

// Parse 从 HTML 中解析 selector 指定的表单。
func Parse(r io.Reader, pageURL, selector string) (Form, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Form{}, fmt.Errorf("parse dashboard html: %w", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return Form{}, fmt.Errorf("form %q not found on %s", selector, pageURL)
	}
	action, _ := sel.Attr("action")
	f := Form{Action: abs(pageURL, action)}
	sel.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(s) {
		case "input":
			v, ok := inputValue(s)
			if ok {
				f.Inputs = append(f.Inputs, model.Field{Name: name, Value: v})
			}
		case "select":
			f.Inputs = append(f.Inputs, selectValues(s, name)...)
		case "textarea":
			f.Inputs = append(f.Inputs, model.Field{Name: name, Value: s.Text()})
		}
	})
	return f, nil
}

// inputValue 返回 input 的提交值；未选中的 checkbox/radio 与按钮类不参与提交。
func inputValue(s *goquery.Selection) (string, bool) {
	typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "text")))
	switch typ {
	case "submit", "button", "reset", "image", "file":
		return "", false
	case "checkbox", "radio":
		if _, checked := s.Attr("checked"); !checked {
			return "", false
		}
		return s.AttrOr("value", "on"), true
	}
	return s.AttrOr("value", ""), true
}

// selectValues 返回 select 的选中项；单选且无 selected 时取第一个 option。
func selectValues(s *goquery.Selection, name string) []model.Field {
	var out []model.Field
	opts := s.Find("option")
	opts.Each(func(_ int, o *goquery.Selection) {
		if _, ok := o.Attr("selected"); ok {
			out = append(out, model.Field{Name: name, Value: optionValue(o)})
		}
	})
	if len(out) > 0 {
		return out
	}
	if _, multi := s.Attr("multiple"); multi || opts.Length() == 0 {
		return nil
	}
	return []model.Field{{Name: name, Value: optionValue(opts.First())}}
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}

// abs 将相对 action 转为绝对 URL；action 为空时即为页面本身。
func abs(base, ref string) string {
	ref = strings.TrimSpace(ref)
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}
