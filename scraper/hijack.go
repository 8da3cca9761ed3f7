package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerHosts are analytics and ad hosts that never carry review content.
// Subdomains match too.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"amazon-adsystem.com":   {},
	"facebook.net":          {},
	"criteo.com":            {},
	"hotjar.com":            {},
	"scorecardresearch.com": {},
	"taboola.com":           {},
	"outbrain.com":          {},
}

// blockSet holds the resource types a render refuses to load.
type blockSet map[proto.NetworkResourceType]struct{}

// newBlockSet maps configured names ("Image", "Font", ...) to resource
// types. Unknown names are ignored; scripts can never be blocked since the
// review list is often rendered by them.
func newBlockSet(names []string) blockSet {
	set := make(blockSet, len(names))
	for _, name := range names {
		if rt, ok := resourceTypes[name]; ok {
			set[rt] = struct{}{}
		}
	}
	return set
}

func (s blockSet) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := s[rt]; ok {
		return true
	}
	u, err := url.Parse(rawURL)
	return err == nil && isTrackerHost(u.Hostname())
}

// isTrackerHost reports whether host or one of its parent domains is a
// known tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

// hijack installs a request interceptor that fails blocked requests.
// The returned router must be stopped by the caller.
func (s blockSet) hijack(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if s.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
