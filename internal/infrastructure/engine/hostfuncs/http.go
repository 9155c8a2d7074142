package hostfuncs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/loomhost/loom/internal/version"
)

// dnsPinningTransport resolves a hostname once, validates it against the
// template's allow-list, and pins every subsequent connection to that
// address, preventing a DNS-rebinding guest from reaching a host it was
// denied after the capability check passed. Kept near-verbatim from the
// teacher (it is a general-purpose SSRF control, not domain-specific).
type dnsPinningTransport struct {
	base       *http.Transport
	ctx        context.Context
	pluginName string
}

func (t *dnsPinningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	hostname := req.URL.Hostname()
	template := HostStateFromContext(t.ctx)
	if !template.AllowsHost(hostname) {
		return nil, fmt.Errorf("capability denied: network access to %q not granted to %s", hostname, t.pluginName)
	}

	addrs, err := net.DefaultResolver.LookupHost(t.ctx, hostname)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %q: %w", hostname, err)
	}
	validatedIP := addrs[0]

	port := portOf(req.URL)
	pinned := t.base.Clone()
	pinned.DialContext = func(dialCtx context.Context, network, _ string) (net.Conn, error) {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		return dialer.DialContext(dialCtx, network, net.JoinHostPort(validatedIP, port))
	}
	if req.URL.Scheme == "https" {
		if pinned.TLSClientConfig == nil {
			pinned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		pinned.TLSClientConfig.ServerName = hostname
	}

	return pinned.RoundTrip(req)
}

func portOf(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// HTTPRequest is the loom_host.http_request import: the guest's sole
// network capability, gated by the call's HostStateTemplate.AllowedHosts.
func HTTPRequest(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, size := unpackPtrLen(stack[0])
	raw, ok := readGuestBytes(ctx, mod, ptr, size)
	if !ok {
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: "failed to read request from guest memory", Type: "internal"}})
		return
	}

	var request HTTPRequestWire
	if err := json.Unmarshal(raw, &request); err != nil {
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: fmt.Sprintf("invalid request: %v", err), Type: "internal"}})
		return
	}

	pluginName := getPluginName(ctx, mod)

	parsedURL, err := url.Parse(request.URL)
	if err != nil {
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: fmt.Sprintf("invalid url: %v", err), Type: "config"}})
		return
	}

	template := HostStateFromContext(ctx)
	if !template.AllowsHost(parsedURL.Hostname()) {
		slog.WarnContext(ctx, "capability denied", "component", pluginName, "host", parsedURL.Hostname())
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{
			Message: fmt.Sprintf("network access to %q not granted", parsedURL.Hostname()), Type: "capability",
		}})
		return
	}

	var body io.Reader
	if request.Body != "" {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: fmt.Sprintf("invalid body encoding: %v", err), Type: "config"}})
			return
		}
		body = bytes.NewReader(decoded)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if request.Context.DeadlineUnixMilli > 0 {
		callCtx, cancel = context.WithDeadline(ctx, time.UnixMilli(request.Context.DeadlineUnixMilli))
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, request.Method, request.URL, body)
	if err != nil {
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: fmt.Sprintf("build request: %v", err), Type: "internal"}})
		return
	}
	req.Header.Set("User-Agent", fmt.Sprintf("loom/%s", version.Version))
	for k, vs := range request.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := &http.Client{
		Transport: &dnsPinningTransport{
			base: &http.Transport{
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			ctx:        callCtx,
			pluginName: pluginName,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: err.Error(), Type: "transport"}})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	const maxBody = 10 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{Error: &ErrorDetail{Message: err.Error(), Type: "transport"}})
		return
	}
	truncated := false
	if len(respBody) > maxBody {
		respBody = respBody[:maxBody]
		truncated = true
	}

	headers := make(map[string][]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = v
	}

	stack[0] = writeGuestJSON(ctx, mod, HTTPResponseWire{
		StatusCode:    resp.StatusCode,
		Headers:       headers,
		Body:          base64.StdEncoding.EncodeToString(respBody),
		BodyTruncated: truncated,
	})
}
