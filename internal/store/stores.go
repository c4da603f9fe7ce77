package store

// Stores is the top-level container for the storage backends the gateway
// wires at startup. Single-operator mode keeps exactly one of each: no
// per-tenant fan-out, no cluster-wide shared state.
type Stores struct {
	Sessions SessionStore
	Cron     CronStore
}
