// 包 fetch 封装 HTTP 客户端（代理/超时/重试），用于加载仪表盘页面与请求导出端点。
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

const defaultUA = "weather-dashboard/1.0 (+https://github.com/weather-station)"

// Client 为 HTTP 客户端：Get 带重试，Do 只请求一次。
type Client struct {
	http  *http.Client
	retry int
}

// Options 为客户端构造参数。Timeout <= 0 表示不设置整体超时，交由传输层自身行为决定。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
}

// New 创建客户端，支持 http/https 代理。
func New(opts Options) (*Client, error) {
	var proxyHTTP, proxyHTTPS *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if proxyHTTP, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if proxyHTTPS, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && proxyHTTPS != nil {
				return proxyHTTPS, nil
			}
			if req.URL.Scheme == "http" && proxyHTTP != nil {
				return proxyHTTP, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	cl := &http.Client{Transport: transport}
	if opts.Timeout > 0 {
		cl.Timeout = opts.Timeout
	}
	retry := opts.Retry
	if retry < 0 {
		retry = 0
	}
	return &Client{http: cl, retry: retry}, nil
}

// Get 请求并在网络错误或非 2xx 时线性回退重试，成功时返回 2xx 响应。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= c.retry; i++ {
		resp, err := c.Do(ctx, rawURL, nil)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("http status: %s", resp.Status)
			resp.Body.Close()
		} else {
			lastErr = err
		}
		if i == c.retry {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 300 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// Do 发起一次 GET 请求，不重试，任何状态码都原样返回给调用方。
func (c *Client) Do(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		ua := os.Getenv("WXDASH_UA")
		if ua == "" {
			ua = defaultUA
		}
		req.Header.Set("User-Agent", ua)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp, nil
}
