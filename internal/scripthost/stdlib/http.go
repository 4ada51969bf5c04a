// Package stdlib implements the helper modules spec.md §4.1 requires the
// script host to expose to provider scripts: github, http, platform, and
// install.
package stdlib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"
	"github.com/jdxcode/netrc"
)

// ErrHostNotPermitted is wrapped into the error returned when a provider's
// declared http permission list does not cover the requested host.
var ErrHostNotPermitted = fmt.Errorf("http access not permitted for this provider")

// HTTPModule implements the `http` stdlib module. GetJSON is the only
// network primitive providers may call; vx attaches GitHub credentials
// automatically for api.github.com requests (SPEC_FULL.md's
// "GitHub-token-aware version fetch" supplement), checking GITHUB_TOKEN
// before falling back to ~/.netrc.
type HTTPModule struct {
	Client    *http.Client
	AllowHost func(host string) bool
}

// NewHTTPModule builds an HTTPModule whose requests are restricted to
// hosts for which allow returns true.
func NewHTTPModule(allow func(host string) bool) *HTTPModule {
	return &HTTPModule{
		Client:    hardenedClient(),
		AllowHost: allow,
	}
}

// hardenedClient rejects redirects to non-HTTPS targets or to hosts that
// resolve to a private/loopback/link-local address, since provider scripts
// supply URLs vx did not choose. A redirect chain longer than 5 hops is
// also refused.
func hardenedClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme != "https" {
				return fmt.Errorf("refusing redirect to non-https url: %s", req.URL)
			}

			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}

			return checkNotPrivate(req.URL.Hostname())
		},
	}
}

func checkNotPrivate(host string) error {
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("refusing to contact %s: resolves to non-public address %s", host, ip)
		}
	}

	return nil
}

// GetJSON performs the permission-checked GET and JSON decode.
func (m *HTTPModule) GetJSON(ctx context.Context, rawURL string) (any, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("http.get_json: invalid url %q: %w", rawURL, err)
	}

	if m.AllowHost != nil && !m.AllowHost(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotPermitted, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("http.get_json: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	attachGitHubAuth(req, u.Hostname())

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.get_json: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http.get_json: HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http.get_json: read body: %w", err)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("http.get_json: decode: %w", err)
	}

	return v, nil
}

// attachGitHubAuth sets an Authorization header for api.github.com
// requests from GITHUB_TOKEN, falling back to a ~/.netrc entry.
func attachGitHubAuth(req *http.Request, host string) {
	if host != "api.github.com" {
		return
	}

	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
		return
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return
	}

	n, err := netrc.Parse(filepath.Join(home, ".netrc"))
	if err != nil {
		return
	}

	machine := n.Machine(host)
	if machine == nil {
		return
	}

	if tok := machine.Get("password"); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

// Register installs the `http` global on vm, bound to this module.
func (m *HTTPModule) Register(vm *goja.Runtime) error {
	obj := vm.NewObject()

	if err := obj.Set("get_json", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError("http.get_json(ctx, url) requires 2 arguments"))
		}

		rawURL := call.Arguments[1].String()

		v, err := m.GetJSON(context.Background(), rawURL)
		if err != nil {
			panic(vm.NewGoError(err))
		}

		return vm.ToValue(v)
	}); err != nil {
		return err
	}

	return vm.Set("http", obj)
}
