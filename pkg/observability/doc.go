// Package observability exposes the assistant's lifecycle as Prometheus metrics.
//
// NewMetrics registers the collectors and returns domain.Hooks that feed them,
// so the same hooks can be passed to every component:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	assistant, _ := concierge.New(store, gateway, concierge.WithHooks(metrics.Hooks()))
//
// Handler serves the registry in the Prometheus text format.
package observability
