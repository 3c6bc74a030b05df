package session

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// trackerDomains are ad and analytics hosts whose requests only add noise
// and latency to a verification run.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":        {},
	"googlesyndication.com":  {},
	"googleadservices.com":   {},
	"google-analytics.com":   {},
	"googletagmanager.com":   {},
	"googletagservices.com":  {},
	"connect.facebook.net":   {},
	"adnxs.com":              {},
	"amazon-adsystem.com":    {},
	"criteo.com":             {},
	"outbrain.com":           {},
	"taboola.com":            {},
	"scorecardresearch.com":  {},
	"hotjar.com":             {},
	"mixpanel.com":           {},
	"segment.io":             {},
	"segment.com":            {},
	"static.ads-twitter.com": {},
	"chartbeat.com":          {},
	"optimizely.com":         {},
	"sharethis.com":          {},
	"addthis.com":            {},
	"consensu.org":           {},
	"plausible.io":           {},
	"clarity.ms":             {},
}

// isTrackerHost reports whether host or any parent domain is a known
// tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// setupHijack installs a request interceptor that fails tracker requests and
// lets everything else through. Images, stylesheets and fonts are never
// blocked so screenshots look like the real page.
//
// The caller stops the returned router when the page closes.
func setupHijack(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if u, err := url.Parse(ctx.Request.URL().String()); err == nil && isTrackerHost(u.Hostname()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
