package retailer

const walmartSearchPage = `<!doctype html><html><head><title>Walmart</title></head><body>
<div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"initialData":{"searchResult":{"itemStacks":[{"items":[
{"name":"Copy Paper 500 Sheets","priceInfo":{"currentPrice":{"price":4.97,"priceString":"$4.97"}},"canonicalUrl":"/ip/copy-paper/111","imageInfo":{"thumbnailUrl":"https://i5.walmartimages.com/a.jpg"},"availabilityStatusV2":{"value":"IN_STOCK"}},
{"name":"Copy Paper 10 Ream","priceInfo":{"currentPrice":{"price":3.47}},"canonicalUrl":"/ip/copy-paper-ream/222","availabilityStatusV2":{"value":"OUT_OF_STOCK"}},
{"name":"Sponsored tile","priceInfo":{}}
]}]}}}}}</script>
</body></html>`

const walmartUnpricedPage = `<!doctype html><html><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"initialData":{"searchResult":{"itemStacks":[{"items":[
{"name":"Out of region","priceInfo":{}},{"name":"Free sample","priceInfo":{"currentPrice":{"price":0}}}
]}]}}}}}</script>
</body></html>`

const targetSearchPage = `<!doctype html><html><body><div id="root"></div>
<script>window.__PRELOADED_QUERIES__ = {"queries":[["search",{"data":{"search":{"products":[
{"item":{"product_description":{"title":"Up&Up Copy Paper"},"enrichment":{"buy_url":"https://www.target.com/p/-/A-1","images":{"primary_image_url":"https://target.scene7.com/1"}}},"price":{"current_retail":8.99},"fulfillment":{"shipping_options":{"availability_status":"IN_STOCK"}}},
{"item":{"product_description":{"title":"Hammermill Paper"}},"price":{"formatted_current_price":"$12.49"}}
]}}}]]};</script>
</body></html>`

const amazonSearchPage = `<!doctype html><html><body>
<div data-component-type="s-search-result"><h2><a href="/dp/B001"><span>AmazonBasics Paper</span></a></h2>
<span class="a-price"><span class="a-offscreen">$24.99</span></span><img class="s-image" src="https://m.media-amazon.com/1.jpg"></div>
<div data-component-type="s-search-result"><h2><a href="/dp/B002"><span>Amazon  Paper
 2</span></a></h2>
<span class="a-price"><span class="a-offscreen">$21.50</span></span>
<span class="a-price a-text-price"><span class="a-offscreen">$30.00</span></span></div>
</body></html>`

const homeDepotSearchPage = `<!doctype html><html><body>
<script>window.__APOLLO_STATE__={"ROOT_QUERY":{"searchModel":{"products":[{"__ref":"BaseProduct:1"}]}},"BaseProduct:1":{"identifiers":{"productLabel":"HDX Paper Towels","canonicalUrl":"/p/HDX-Paper-Towels/1"},"pricing":{"value":15.97,"original":19.97},"availabilityType":{"buyable":true}},"BaseProduct:2":{"identifiers":{"productLabel":"Bounty"},"pricing":{"value":"$22.48"}}}</script>
</body></html>`

const lowesSearchPage = `<!doctype html><html><body>
<script>window['__PRELOADED_STATE__'] = JSON.parse("{\"itemList\":[{\"product\":{\"title\":\"Kobalt Tape\",\"pdURL\":\"/pd/kobalt-tape/1000\"},\"location\":{\"price\":{\"pricingDataList\":[{\"finalPrice\":9.98}]},\"itemInventory\":{\"totalQty\":0}}}]}");</script>
</body></html>`

const staplesLDPage = `<!doctype html><html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
{"@type":"ListItem","position":1,"item":{"@type":"Product","name":"Staples Copy Paper","url":"https://www.staples.com/product_135848","image":["https://www.staples-3p.com/s7/is/image/Staples/1"],"offers":{"@type":"Offer","price":"45.99","availability":"https://schema.org/InStock"}}},
{"@type":"ListItem","position":2,"item":{"@type":"Product","name":"HP Paper","offers":[{"price":"52.00"},{"price":"49.99","availability":"http://schema.org/OutOfStock"}]}}
]}</script></head><body><main>results</main></body></html>`

const emptyPage = `<!doctype html><html><head><title>Robot check</title></head><body><p>nothing here</p></body></html>`
