package models

// TickSubject is the publish channel for ticks of one asset,
// e.g. "ticks.BTC".
func TickSubject(prefix, asset string) string {
	if prefix == "" {
		prefix = "ticks"
	}
	return prefix + "." + asset
}
