// Package api provides the client for the historical order-book source.
//
// The source serves book snapshots for one exchange/symbol over a half-open
// window:
//
//	GET {base_url}/book?exchange=BINANCE&symbol=ETH-USDT&start=...&end=...[&cursor=...]
//
// Requests are paced by a token bucket, retried with jittered exponential
// backoff on 5xx/429, and guarded by a circuit breaker so a dead source fails
// fast. Every failure surfaces as *FetchError; callers treat it as transient.
package api
