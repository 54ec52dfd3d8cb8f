// Package api hosts the HTTP server, middleware, and REST handlers that expose
// price lookups to operators and schedulers. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/retailers/{retailer}?keyword= for a single retailer probe.
//   - GET /v1/aggregate?keyword=|sku= for the cross-retailer comparison.
//   - POST /v1/items/{item_id}/evaluate to persist prices and raise alerts.
//   - POST /v1/match to find the best product for a procurement item name.
package api
