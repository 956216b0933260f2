// Package metrics exports router statistics to Prometheus. The collector
// reads the router current at scrape time, so it follows hot swaps without
// re-registration.
package metrics
