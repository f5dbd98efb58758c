package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	gobinance "github.com/adshao/go-binance/v2"

	"quoteflow/internal/metrics"
	"quoteflow/logger"
)

// WeightTracker watches the Binance REST weight budget: the per-minute
// REQUEST_WEIGHT limit from exchange info and the used weight reported
// in response headers.
type WeightTracker struct {
	log   *logger.Entry
	limit int64
}

func NewWeightTracker(log *logger.Log) *WeightTracker {
	return &WeightTracker{log: log.WithComponent("binance_weight")}
}

// FetchLimit resolves the per-minute REQUEST_WEIGHT limit.
func (w *WeightTracker) FetchLimit(ctx context.Context) (int64, error) {
	client := gobinance.NewClient("", "")
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance exchange info rate limits: %w", err)
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			w.limit = rl.Limit
			return rl.Limit, nil
		}
	}
	return 0, fmt.Errorf("no REQUEST_WEIGHT minute limit in exchange info")
}

// Observe inspects a REST response for used-weight headers and emits a
// gauge when a numeric value is found.
func (w *WeightTracker) Observe(resp *http.Response) {
	if resp == nil {
		return
	}
	for _, key := range []string{"X-MBX-USED-WEIGHT-1M", "X-MBX-USED-WEIGHT"} {
		value := resp.Header.Get(key)
		if value == "" {
			continue
		}
		used, err := strconv.ParseFloat(value, 64)
		if err != nil {
			w.log.WithFields(logger.Fields{"header": key, "value": value}).WithError(err).Debug("failed to parse used weight header")
			continue
		}

		fields := logger.Fields{"exchange": "binance", "window": "1m"}
		metrics.Gauge("binance_weight", "used_weight", used, fields)
		if w.limit > 0 {
			metrics.Gauge("binance_weight", "used_weight_pct", 100*used/float64(w.limit), fields)
		}
		return
	}
}
