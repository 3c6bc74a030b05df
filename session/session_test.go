package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/models"
)

func TestRoleSelector(t *testing.T) {
	assert.Equal(t, "h1,h2,h3,h4,h5,h6,[role=heading]", roleSelector("heading"))
	assert.Equal(t, roleSelector("button"), roleSelector(" Button "))
	assert.Equal(t, `[role="tabpanel"]`, roleSelector("tabpanel"))
}

func TestNameRegex(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Sign In", "/Sign In/i"},
		{"First Name *", `/First Name \*/i`},
		{"a/b (c)", `/a\/b \(c\)/i`},
		{"  padded  ", "/padded/i"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nameRegex(tt.name), tt.name)
	}
}

func TestIsTrackerHost(t *testing.T) {
	assert.True(t, isTrackerHost("doubleclick.net"))
	assert.True(t, isTrackerHost("pagead2.googlesyndication.com"))
	assert.True(t, isTrackerHost("WWW.Google-Analytics.com."))
	assert.False(t, isTrackerHost("localhost"))
	assert.False(t, isTrackerHost("example.com"))
	assert.False(t, isTrackerHost("notdoubleclick.net"))
	assert.False(t, isTrackerHost(""))
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"X-Env": "staging"})
	require.Contains(t, m, "X-Env")
	assert.Equal(t, "staging", m["X-Env"].Str())
}

func TestDescribeNavError(t *testing.T) {
	err := describeNavError(&rod.NavigationError{Reason: "net::ERR_CONNECTION_REFUSED"})
	assert.Contains(t, err.Error(), "net::ERR_CONNECTION_REFUSED")
	var navErr *rod.NavigationError
	assert.True(t, errors.As(err, &navErr))

	plain := errors.New("boom")
	assert.Same(t, plain, describeNavError(plain))
}

const fixturePage = `<!doctype html>
<html><head><title>Fixture</title></head>
<body>
  <div class="progress-container"><div class="progress-bar" style="width:40%;height:4px;background:#09f"></div></div>
  <h1>Personal Information</h1>
  <form>
    <label for="first">First Name *</label>
    <input id="first" type="text">
  </form>
  <button class="login-trigger" onclick="document.getElementById('modal').style.display='block'">Log in</button>
  <div id="modal" style="display:none"><h2>Sign In</h2></div>
</body></html>`

// launchForTest starts a real browser or skips when none is installed.
func launchForTest(t *testing.T) *Browser {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in -short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chromium found")
	}

	cfg := config.Load().Browser
	cfg.BrowserBin = bin
	cfg.NoSandbox = true

	b, err := Launch(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPage_EndToEnd(t *testing.T) {
	b := launchForTest(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixturePage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := b.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.SetViewport(ctx, models.Viewport{Width: 375, Height: 667, Mobile: true}))
	require.NoError(t, page.Navigate(ctx, srv.URL+"/registration.html", 200*time.Millisecond))
	require.NoError(t, page.WaitNetworkIdle(ctx))

	require.NoError(t, page.WaitVisible(ctx, models.Locator{CSS: ".progress-container .progress-bar"}))
	require.NoError(t, page.WaitVisible(ctx, models.Locator{Role: "heading", Name: "Personal Information"}))
	require.NoError(t, page.WaitVisible(ctx, models.Locator{Label: "First Name *"}))

	short, cancelShort := context.WithTimeout(ctx, 300*time.Millisecond)
	err = page.WaitVisible(short, models.Locator{Role: "heading", Name: "Sign In"})
	cancelShort()
	require.Error(t, err, "modal is hidden before the click")

	require.NoError(t, page.Click(ctx, models.Locator{CSS: "button.login-trigger"}))
	require.NoError(t, page.WaitVisible(ctx, models.Locator{Role: "heading", Name: "Sign In"}))

	shot := filepath.Join(t.TempDir(), "nested", "modal.png")
	require.NoError(t, page.Screenshot(ctx, shot, false))
	info, err := os.Stat(shot)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	html, title, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", title)
	assert.Contains(t, html, "Personal Information")
}

func TestPage_UnreachableTarget(t *testing.T) {
	b := launchForTest(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := b.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	err = page.Navigate(ctx, addr+"/index.html", 0)
	var navErr *rod.NavigationError
	require.ErrorAs(t, err, &navErr)
}
