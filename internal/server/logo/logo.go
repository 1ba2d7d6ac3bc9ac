// Package logo resolves a display logo URL for a website. Resolution never
// fails: known sites map to fixed URLs, other hosts race a set of public
// favicon services and, when none answers in time, get a text avatar.
package logo

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
)

// Result is a resolved logo with its provenance.
type Result struct {
	URL    string            `json:"url"`
	Status models.LogoStatus `json:"status"`
	Source models.LogoSource `json:"source"`
}

// Cache stores race results keyed by cleaned host.
type Cache interface {
	Get(ctx context.Context, host string) (Result, bool, error)
	Set(ctx context.Context, host string, r Result) error
}

const avatarBase = "https://ui-avatars.com/api/?name="

var knownSites = map[string]string{
	"github.com":    "https://github.githubassets.com/favicons/favicon.svg",
	"mongodb.com":   "https://www.mongodb.com/assets/images/global/favicon.ico",
	"google.com":    "https://www.google.com/favicon.ico",
	"gmail.com":     "https://www.google.com/gmail/about/static/images/favicon.ico",
	"yahoo.com":     "https://s.yimg.com/cv/apiv2/default/icons/favicon_y19_32x32_custom.svg",
	"microsoft.com": "https://www.microsoft.com/favicon.ico",
	"linkedin.com":  "https://static.licdn.com/sc/h/akt4ae504epesldzj74dzred8",
	"facebook.com":  "https://static.xx.fbcdn.net/rsrc.php/yD/r/d4ZIVX-5C-b.ico",
	"twitter.com":   "https://abs.twimg.com/favicons/twitter.ico",
	"amazon.com":    "https://www.amazon.com/favicon.ico",
	"example.com":   "https://ui-avatars.com/api/?name=Example&background=random&size=128",
}

// Known returns the fixed logo URL for a cleaned host.
func Known(host string) (string, bool) {
	u, ok := knownSites[host]
	return u, ok
}

// Clean normalizes a user-entered website into a bare host:
// lowercase, no scheme, no leading "www.", nothing after the first / ? or #.
func Clean(website string) string {
	s := strings.ToLower(strings.TrimSpace(website))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Avatar returns the text-avatar URL for a cleaned host.
func Avatar(host string) string {
	name := host
	if name == "" {
		name = "Unknown"
	}
	return avatarBase + shared.EncodeURIComponent(name) + "&background=random&size=128"
}

func fallback(host string) Result {
	return Result{
		URL:    Avatar(host),
		Status: models.LogoStatusFallback,
		Source: models.LogoSourceFallback,
	}
}
