// Package main hosts the pricewatch service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, readiness, metrics and the /v1 routes for retailer probes,
//     cross-retailer aggregation, item evaluation and product matching.
//   - Aggregation: internal/aggregator fans a keyword or SKU out to every enabled retailer adapter concurrently,
//     bounds each adapter with its own timeout and orders the quotes cheapest first.
//   - Fetch pipeline: adapters fetch through the resilient fetcher (Colly transport, per-host rate limiting, retry
//     with exponential backoff, body validation) and fall back to a headless Chromedp render for JS shells.
//   - Evaluation: each valid quote for a tracked item is persisted as a price record; quotes cheaper than the item's
//     reference price by at least alerts.min_savings_percent raise an alert, deduplicated in memory or Redis and
//     published to Pub/Sub when a topic is configured.
//   - Persistence: items, price records and alerts live in Postgres or in memory. Pages that fail extraction are
//     snapshotted to GCS, the local filesystem or memory.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported on /metrics; OpenTelemetry spans cover aggregations and adapter lookups.
//
// Quick checklist:
//   - Configure env vars: PRICEWATCH_SERVER_PORT or PORT, PRICEWATCH_RETAILERS_ENABLED, PRICEWATCH_STORAGE_BACKEND,
//     PRICEWATCH_DB_DSN, PRICEWATCH_ALERTS_TOPIC, PRICEWATCH_PUBSUB_ENABLED and PRICEWATCH_PUBSUB_PROJECT_ID.
//   - Run locally: go run ./cmd/pricewatch -config config.yaml (or rely solely on env overrides).
//   - Cloud Run: the container listens on PORT and drains in-flight requests on SIGTERM.
package main
