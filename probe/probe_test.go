package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tls "github.com/refraction-networking/utls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageshot/models"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"simple", "<html><head><title>Home</title></head></html>", "Home"},
		{"whitespace", "<title>\n  Sign   Up \n</title>", "Sign Up"},
		{"empty", "<title></title><h1>x</h1>", ""},
		{"missing", "<html><body><h1>No title</h1></body></html>", ""},
		{"after meta", `<meta charset="utf-8"><title>Events</title>`, "Events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTitle(strings.NewReader(tt.html)))
		})
	}
}

func TestProbe_HTTP(t *testing.T) {
	var gotHeader, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Env")
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Registration</title></head></html>"))
	}))
	defer srv.Close()

	p := New(map[string]string{"X-Env": "test"})

	res, err := p.Probe(context.Background(), srv.URL+"/registration.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Registration", res.Title)
	assert.Equal(t, "test", gotHeader)
	assert.Contains(t, gotUA, "Chrome/")

	_, err = p.Probe(context.Background(), srv.URL+"/missing.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := New(nil).Check(context.Background(), addr+"/index.html")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTargetUnreachable))

	var ve *models.VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeTargetUnreachable, ve.Code)
}

func TestProbe_File(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "about.html")
	require.NoError(t, os.WriteFile(page, []byte("<title>About us</title>"), 0o644))

	target := (&url.URL{Scheme: "file", Path: filepath.ToSlash(page)}).String()
	res, err := New(nil).Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, "About us", res.Title)
	assert.Zero(t, res.StatusCode)

	_, err = New(nil).Probe(context.Background(), "file://"+filepath.ToSlash(filepath.Join(dir, "nope.html")))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = New(nil).Probe(context.Background(), "file://"+filepath.ToSlash(dir))
	assert.ErrorContains(t, err, "is a directory")
}

func TestProbe_UnsupportedScheme(t *testing.T) {
	_, err := New(nil).Probe(context.Background(), "ftp://example.com/x")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestH1Spec_ForcesHTTP11(t *testing.T) {
	spec, err := h1Spec(tls.HelloChrome_Auto)
	require.NoError(t, err)

	var protos []string
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			protos = alpn.AlpnProtocols
		}
	}
	assert.Equal(t, []string{"http/1.1"}, protos)
}

func TestUClient_FallsBackToGoHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	unknown := tls.ClientHelloID{Client: "unknown", Version: "0"}
	_, err := h1Spec(unknown)
	require.Error(t, err)

	uc, err := uclient(client, "example.com", unknown)
	require.NoError(t, err)
	assert.Equal(t, tls.HelloGolang, uc.ClientHelloID)

	uc, err = uclient(client, "example.com", tls.HelloChrome_Auto)
	require.NoError(t, err)
	assert.Equal(t, tls.HelloCustom, uc.ClientHelloID)
}
