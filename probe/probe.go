// Package probe checks that verification targets are reachable before a
// browser session is started.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/pageshot/models"
	"golang.org/x/net/html"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// maxBody caps how much of a page is read looking for its title.
	maxBody = 1 << 20

	defaultTimeout = 10 * time.Second
)

var fallbackOnce sync.Once

// h1Spec returns the ClientHello for id with ALPN forced to http/1.1, since
// http.Transport cannot speak h2 over a utls connection.
func h1Spec(id tls.ClientHelloID) (*tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(id)
	if err != nil {
		return nil, fmt.Errorf("tls spec %s: %w", id.Str(), err)
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return &spec, nil
}

// uclient wraps conn in a client presenting the id fingerprint. When no
// spec can be built for id, the plain Go handshake is used and a warning
// is logged once.
func uclient(conn net.Conn, host string, id tls.ClientHelloID) (*tls.UConn, error) {
	cfg := &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}
	spec, err := h1Spec(id)
	if err != nil {
		fallbackOnce.Do(func() {
			slog.Warn("browser tls fingerprint unavailable, using the Go handshake", "error", err)
		})
		return tls.UClient(conn, cfg, tls.HelloGolang), nil
	}
	uc := tls.UClient(conn, cfg, tls.HelloCustom)
	if err := uc.ApplyPreset(spec); err != nil {
		return nil, fmt.Errorf("apply tls spec: %w", err)
	}
	return uc, nil
}

// Result describes a reachable target.
type Result struct {
	Target     string
	StatusCode int // 0 for file targets
	Title      string
	Latency    time.Duration
}

// Prober performs reachability checks. It is safe for concurrent use.
type Prober struct {
	client  *http.Client
	headers map[string]string
	timeout time.Duration
}

// New creates a Prober sending headers with every HTTP check.
func New(headers map[string]string) *Prober {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: defaultTimeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn, err := uclient(conn, host, tls.HelloChrome_Auto)
			if err != nil {
				conn.Close()
				return nil, err
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &Prober{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		headers: headers,
		timeout: defaultTimeout,
	}
}

// Check implements runner.Checker: any failure is TARGET_UNREACHABLE.
func (p *Prober) Check(ctx context.Context, target string) error {
	res, err := p.Probe(ctx, target)
	if err != nil {
		return models.NewVerificationError(models.ErrCodeTargetUnreachable, "",
			"preflight: "+target+" is not reachable", err)
	}
	slog.Info("preflight ok", "target", target, "status", res.StatusCode,
		"title", res.Title, "latency", res.Latency.Round(time.Millisecond))
	return nil
}

// Probe fetches target (http, https or file) and reports what it found.
func (p *Prober) Probe(ctx context.Context, target string) (*Result, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	start := time.Now()
	var res *Result
	switch u.Scheme {
	case "file":
		res, err = probeFile(u)
	case "http", "https":
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		res, err = p.probeHTTP(ctx, target)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	res.Target = target
	res.Latency = time.Since(start)
	return res, nil
}

func (p *Prober) probeHTTP(ctx context.Context, target string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	res := &Result{StatusCode: resp.StatusCode}
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		res.Title = extractTitle(io.LimitReader(resp.Body, maxBody))
	}
	return res, nil
}

func probeFile(u *url.URL) (*Result, error) {
	path := u.Path
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return &Result{Title: extractTitle(io.LimitReader(f, maxBody))}, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle returns the text of the first <title> element, or "".
func extractTitle(r io.Reader) string {
	z := html.NewTokenizer(r)
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := z.TagName()
			inTitle = string(tn) == "title"
		case html.TextToken:
			if inTitle {
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
