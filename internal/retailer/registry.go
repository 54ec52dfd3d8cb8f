package retailer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

var constructors = map[string]func(Deps) pricing.Adapter{
	NameWalmart:   func(d Deps) pricing.Adapter { return NewWalmart(d) },
	NameTarget:    func(d Deps) pricing.Adapter { return NewTarget(d) },
	NameAmazon:    func(d Deps) pricing.Adapter { return NewAmazon(d) },
	NameHomeDepot: func(d Deps) pricing.Adapter { return NewHomeDepot(d) },
	NameLowes:     func(d Deps) pricing.Adapter { return NewLowes(d) },
	NameStaples:   func(d Deps) pricing.Adapter { return NewStaples(d) },
}

// Names lists every supported retailer in presentation order.
func Names() []string {
	return []string{NameWalmart, NameTarget, NameAmazon, NameHomeDepot, NameLowes, NameStaples}
}

// Build constructs the adapters named in enabled (all when empty). baseURLs
// optionally overrides a retailer's origin.
func Build(enabled []string, baseURLs map[string]string, deps Deps) ([]pricing.Adapter, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("retailer: fetcher is required")
	}
	if len(enabled) == 0 {
		enabled = Names()
	}
	seen := make(map[string]struct{}, len(enabled))
	adapters := make([]pricing.Adapter, 0, len(enabled))
	for _, raw := range enabled {
		name := strings.ToLower(strings.TrimSpace(raw))
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("retailer: unknown retailer %q", raw)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		d := deps
		d.BaseURL = baseURLs[name]
		adapters = append(adapters, ctor(d))
	}
	return adapters, nil
}
