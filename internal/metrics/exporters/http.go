// Package exporters serves the acquisition metrics over HTTP.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus scrape handler for every
// promauto-registered camsync metric.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
