package fetcher

import (
	"math/rand/v2"
	"net/http"
)

// Profile is a coherent set of browser-like request headers.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	SecCHUA        string
	Platform       string
}

// Headers renders the profile as request headers.
func (p Profile) Headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", p.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", p.AcceptLanguage)
	h.Set("Cache-Control", "no-cache")
	h.Set("Upgrade-Insecure-Requests", "1")
	if p.SecCHUA != "" {
		h.Set("Sec-CH-UA", p.SecCHUA)
		h.Set("Sec-CH-UA-Mobile", "?0")
		h.Set("Sec-CH-UA-Platform", p.Platform)
	}
	return h
}

var defaultProfiles = []Profile{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		SecCHUA:        `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		Platform:       `"Windows"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.8",
		SecCHUA:        `"Chromium";v="128", "Not;A=Brand";v="24", "Google Chrome";v="128"`,
		Platform:       `"macOS"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
		AcceptLanguage: "en-US,en;q=0.5",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		SecCHUA:        `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		Platform:       `"Linux"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
		AcceptLanguage: "en-US,en;q=0.9",
		SecCHUA:        `"Microsoft Edge";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		Platform:       `"Windows"`,
	},
}

// UserAgentPool hands out random browser profiles. The pool is immutable after
// construction so concurrent Pick calls need no locking.
type UserAgentPool struct {
	profiles []Profile
}

// NewUserAgentPool builds a pool. Extra user agents become header-light profiles;
// with none given the built-in browser profiles are used.
func NewUserAgentPool(userAgents ...string) *UserAgentPool {
	if len(userAgents) == 0 {
		return &UserAgentPool{profiles: append([]Profile(nil), defaultProfiles...)}
	}
	profiles := make([]Profile, 0, len(userAgents))
	for _, ua := range userAgents {
		if ua == "" {
			continue
		}
		profiles = append(profiles, Profile{UserAgent: ua, AcceptLanguage: "en-US,en;q=0.9"})
	}
	if len(profiles) == 0 {
		profiles = append(profiles, defaultProfiles...)
	}
	return &UserAgentPool{profiles: profiles}
}

// Pick returns a random profile.
func (p *UserAgentPool) Pick() Profile {
	if p == nil || len(p.profiles) == 0 {
		return defaultProfiles[0]
	}
	return p.profiles[rand.IntN(len(p.profiles))]
}

// Len reports the pool size.
func (p *UserAgentPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.profiles)
}
