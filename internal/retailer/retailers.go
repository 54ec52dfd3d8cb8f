package retailer

import (
	"net/url"
	"strings"
)

// Retailer identifiers.
const (
	NameWalmart   = "walmart"
	NameTarget    = "target"
	NameAmazon    = "amazon"
	NameHomeDepot = "homedepot"
	NameLowes     = "lowes"
	NameStaples   = "staples"
)

// Walmart reads __NEXT_DATA__ search stacks and product pages.
type Walmart struct{ *engine }

// NewWalmart builds the Walmart adapter.
func NewWalmart(deps Deps) *Walmart {
	fields := FieldMap{
		Title: []string{"name", "title"},
		Price: []string{"priceInfo.currentPrice", "priceInfo.linePrice", "priceInfo.priceRange.minPrice", "price"},
		URL:   []string{"canonicalUrl", "productPageUrl", "url"},
		Image: []string{"imageInfo.thumbnailUrl", "image", "imageInfo.allImages.0.url"},
		Stock: []string{"availabilityStatusV2.value", "availabilityStatusDisplayValue", "availabilityStatus"},
	}
	return &Walmart{newEngine(definition{
		name:    NameWalmart,
		baseURL: "https://www.walmart.com",
		searchURL: func(base, keyword string) string {
			return base + "/search?q=" + url.QueryEscape(keyword)
		},
		skuURL: func(base, sku string) string {
			return base + "/ip/" + url.PathEscape(sku)
		},
		strategies: []Strategy{
			ScriptByID("__NEXT_DATA__", []string{
				"props.pageProps.initialData.searchResult.itemStacks.*.items",
				"props.pageProps.initialData.contentLayout.modules.*.configs.products",
				"props.pageProps.initialData.data.product",
			}, fields),
			LDJSON(),
		},
	}, deps)}
}

// Target reads __PRELOADED_QUERIES__ (and __NEXT_DATA__ on newer pages).
type Target struct{ *engine }

// NewTarget builds the Target adapter.
func NewTarget(deps Deps) *Target {
	fields := FieldMap{
		Title: []string{"item.product_description.title", "title"},
		Price: []string{"price.current_retail", "price.current_retail_min", "price.reg_retail", "price.formatted_current_price"},
		URL:   []string{"item.enrichment.buy_url", "url"},
		Image: []string{"item.enrichment.images.primary_image_url"},
		Stock: []string{"fulfillment.shipping_options.availability_status"},
	}
	return &Target{newEngine(definition{
		name:    NameTarget,
		baseURL: "https://www.target.com",
		searchURL: func(base, keyword string) string {
			return base + "/s?searchTerm=" + url.QueryEscape(keyword)
		},
		skuURL: func(base, sku string) string {
			return base + "/p/-/A-" + url.PathEscape(sku)
		},
		strategies: []Strategy{
			GlobalAssignment("__PRELOADED_QUERIES__", []string{
				"queries.*.*.data.search.products",
				"queries.*.*.data.product",
			}, fields),
			ScriptByID("__NEXT_DATA__", []string{
				"props.pageProps.__PRELOADED_QUERIES__.queries.*.*.data.search.products",
				"props.pageProps.dehydratedState.queries.*.state.data.data.search.products",
			}, fields),
			LDJSON(),
		},
	}, deps)}
}

// Amazon renders results server side; cards are scraped directly.
type Amazon struct{ *engine }

// NewAmazon builds the Amazon adapter.
func NewAmazon(deps Deps) *Amazon {
	return &Amazon{newEngine(definition{
		name:    NameAmazon,
		baseURL: "https://www.amazon.com",
		searchURL: func(base, keyword string) string {
			return base + "/s?k=" + url.QueryEscape(keyword)
		},
		skuURL: func(base, sku string) string {
			return base + "/dp/" + url.PathEscape(strings.ToUpper(sku))
		},
		strategies: []Strategy{
			HTMLCards("search", CardSelectors{
				Card:  `div[data-component-type="s-search-result"]`,
				Title: "h2",
				Price: "span.a-price:not(.a-text-price) > span.a-offscreen",
				Link:  "h2 a, a.a-link-normal.s-no-outline",
				Image: "img.s-image",
			}),
			HTMLCards("detail", CardSelectors{
				Card:       "#dp, #ppd",
				Title:      "#productTitle",
				Price:      "#corePrice_feature_div span.a-offscreen, #corePriceDisplay_desktop_feature_div span.a-offscreen, #priceblock_ourprice",
				Image:      "#landingImage",
				OutOfStock: "#outOfStock",
			}),
			LDJSON(),
		},
	}, deps)}
}

// HomeDepot reads the Apollo cache embedded in search and product pages.
type HomeDepot struct{ *engine }

// NewHomeDepot builds the Home Depot adapter.
func NewHomeDepot(deps Deps) *HomeDepot {
	fields := FieldMap{
		Title: []string{"identifiers.productLabel", "identifiers.brandName"},
		Price: []string{"pricing.value", "pricing.original", "pricing"},
		URL:   []string{"identifiers.canonicalUrl"},
		Image: []string{"media.images.0.url"},
		Stock: []string{"availabilityType.buyable", "fulfillment.fulfillmentOptions.0.services.0.locations.0.inventory.isInStock"},
	}
	return &HomeDepot{newEngine(definition{
		name:    NameHomeDepot,
		baseURL: "https://www.homedepot.com",
		searchURL: func(base, keyword string) string {
			return base + "/s/" + url.PathEscape(keyword)
		},
		skuURL: func(base, sku string) string {
			return base + "/p/" + url.PathEscape(sku)
		},
		strategies: []Strategy{
			GlobalAssignment("__APOLLO_STATE__", []string{
				"ROOT_QUERY.*.products",
				"*",
			}, fields),
			ScriptByID("__NEXT_DATA__", []string{
				"props.pageProps.apolloState.*",
			}, fields),
			LDJSON(),
		},
	}, deps)}
}

// Lowes reads window['__PRELOADED_STATE__'].
type Lowes struct{ *engine }

// NewLowes builds the Lowe's adapter.
func NewLowes(deps Deps) *Lowes {
	fields := FieldMap{
		Title: []string{"product.title", "product.description", "description"},
		Price: []string{
			"location.price.pricingDataList.0.finalPrice",
			"location.price.pricingDataList.0.sellingPrice",
			"pricing.finalPrice",
			"price",
		},
		URL:   []string{"product.pdURL", "pdURL"},
		Image: []string{"product.imageUrls.0.value", "product.imageUrl"},
		Stock: []string{"location.itemInventory.totalQty", "product.isInStock"},
	}
	return &Lowes{newEngine(definition{
		name:    NameLowes,
		baseURL: "https://www.lowes.com",
		searchURL: func(base, keyword string) string {
			return base + "/search?searchTerm=" + url.QueryEscape(keyword)
		},
		skuURL: func(base, sku string) string {
			return base + "/pd/" + url.PathEscape(sku)
		},
		strategies: []Strategy{
			GlobalAssignment("__PRELOADED_STATE__", []string{
				"itemList",
				"productList.items",
				"productDetails.*",
			}, fields),
			LDJSON(),
		},
	}, deps)}
}

// Staples reads __PRELOADED_STATE__ and falls back to product tiles.
type Staples struct{ *engine }

// NewStaples builds the Staples adapter.
func NewStaples(deps Deps) *Staples {
	fields := FieldMap{
		Title: []string{"title", "name", "product.title"},
		Price: []string{"price.finalPrice", "price.price", "pricing.finalPrice", "price"},
		URL:   []string{"productURL", "url"},
		Image: []string{"image", "images.0"},
		Stock: []string{"inStock", "availability", "stockStatus"},
	}
	return &Staples{newEngine(definition{
		name:    NameStaples,
		baseURL: "https://www.staples.com",
		searchURL: func(base, keyword string) string {
			slug := strings.Join(strings.Fields(strings.ToLower(keyword)), "+")
			return base + "/" + url.PathEscape(slug) + "/directory_" + url.PathEscape(slug)
		},
		skuURL: func(base, sku string) string {
			return base + "/product_" + url.PathEscape(sku)
		},
		strategies: []Strategy{
			GlobalAssignment("__PRELOADED_STATE__", []string{
				"searchState.searchResults.products",
				"skuState.skuData.items",
				"productState.product",
			}, fields),
			HTMLCards("tiles", CardSelectors{
				Card:       `div[class*="standard-type__product_tile"], li[class*="product-tile"]`,
				Title:      `a[class*="standard-type__product_title"], a[class*="product-title"]`,
				Price:      `div[class*="standard-type__price"], span[class*="price"]`,
				Link:       `a[class*="standard-type__product_title"], a[class*="product-title"]`,
				Image:      "img",
				OutOfStock: `[class*="out-of-stock"]`,
			}),
			LDJSON(),
		},
	}, deps)}
}
