// Package client is the outbound HTTP client used to fetch remote widget
// bundles.
//
// Built on go-resty/resty with a go-retryablehttp transport:
//   - Automatic retries with exponential backoff
//   - Context-based cancellation
//   - Token bucket rate limiting per client instance
//   - A sony/gobreaker circuit breaker around every request
package client
