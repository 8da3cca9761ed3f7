package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// HTTPEngine is the lightweight engine that uses plain net/http. It is the
// fastest option, suitable for pages whose reviews are server-rendered.
type HTTPEngine struct {
	transport http.RoundTripper
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine whose TLS handshake matches the one
// the browser engine performs, so both engines get the same response for
// the same URL.
func NewHTTPEngine() *HTTPEngine {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:     false,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}
	return &HTTPEngine{transport: transport}
}

// NewHTTPEngineWithTransport creates an HTTPEngine over a custom transport.
func NewHTTPEngineWithTransport(rt http.RoundTripper) *HTTPEngine {
	return &HTTPEngine{transport: rt}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", chromeUA)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	maxRedirects := req.MaxRedirects
	client := &http.Client{
		Transport: e.transport,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !isHTMLContentType(ct) {
		return nil, fmt.Errorf("http_engine: unexpected content-type %q", ct)
	}

	bodyStr := string(body)
	return &FetchResult{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}

// NeedsBrowser uses heuristics to decide if statically fetched HTML likely
// needs JS rendering before reviews appear (SPA shell, noscript warnings).
func NeedsBrowser(body string) bool {
	bodyText := visibleText(body)
	if len(bodyText) < 200 {
		return true
	}

	lower := strings.ToLower(body)
	for _, shell := range []string{`<div id="root"></div>`, `<div id="app"></div>`, `<div id="__next"></div>`} {
		if strings.Contains(lower, shell) {
			return true
		}
	}
	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
		return true
	}
	return strings.Count(lower, "<script") > 10 && len(bodyText) < 500
}

// visibleText extracts the text inside <body>, skipping script and style
// content. Used for heuristics only.
func visibleText(body string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
