// Package metrics exposes doorbell-server metrics in Prometheus format.
//
// Metrics owns a private registry with the Go runtime and process collectors
// plus the sensor and session metrics. It implements sensor.Observer so the
// monitor reports transitions directly, and the notification channel reports
// every sent message and send failure.
package metrics
