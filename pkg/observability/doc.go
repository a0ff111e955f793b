/*
Package observability turns transaction lifecycle events into metrics and
audit logs.

Both helpers return domain.TransactionHooks, so they plug into a
document.Manager or an authority.Authority:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := document.NewManager(transport, loader,
		document.WithHooks(metrics.Hooks()),
		document.WithHooks(observability.LogHooks(logger)),
	)
*/
package observability
