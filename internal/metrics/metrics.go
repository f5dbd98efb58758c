// Package metrics publishes operational metrics to CloudWatch. When no
// client is configured every emit degrades to a structured log line, so
// callers never need to guard metric calls. Publishing is asynchronous:
// emit only enqueues, and a background worker batches the PutMetricData
// calls, so metric calls are safe on tick hot paths.
package metrics

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"quoteflow/logger"
)

const (
	queueSize     = 1024
	maxBatch      = 20
	flushInterval = 15 * time.Second
)

type cloudWatchState struct {
	client    *cloudwatch.Client
	namespace string
}

var (
	cwState    atomic.Pointer[cloudWatchState]
	queue      = make(chan cwtypes.MetricDatum, queueSize)
	workerOnce sync.Once
)

func init() {
	cwState.Store(&cloudWatchState{namespace: "Quoteflow"})
}

// Init configures the CloudWatch client and starts the flush worker.
// When the AWS configuration cannot be loaded a warning is logged and
// publishing stays disabled.
func Init(region, namespace string) {
	log := logger.GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	state := *cwState.Load()
	state.client = cloudwatch.NewFromConfig(cfg)
	if namespace != "" {
		state.namespace = namespace
	}
	cwState.Store(&state)
	workerOnce.Do(func() { go flushLoop() })

	log.WithFields(logger.Fields{
		"region":    cfg.Region,
		"namespace": state.namespace,
	}).Info("initialized CloudWatch client")
}

// Gauge emits a gauge metric.
func Gauge(component, metric string, value float64, fields logger.Fields) {
	emit(component, metric, value, "gauge", fields)
}

// Count emits a counter metric.
func Count(component, metric string, value float64, fields logger.Fields) {
	emit(component, metric, value, "counter", fields)
}

func emit(component, metric string, value float64, metricType string, fields logger.Fields) {
	if fields == nil {
		fields = logger.Fields{}
	}
	logFields := logger.Fields{"metric": metric, "value": value, "metric_type": metricType}
	for k, v := range fields {
		logFields[k] = v
	}
	logger.GetLogger().WithComponent(component).WithFields(logFields).Debug("metric")

	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(component)}}
	for k, v := range fields {
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	datum := cwtypes.MetricDatum{
		MetricName: aws.String(metric),
		Dimensions: dims,
		Unit:       cwtypes.StandardUnitCount,
		Value:      aws.Float64(value),
	}

	// Never block the caller. A full queue drops the datum.
	select {
	case queue <- datum:
	default:
	}
}

// flushLoop drains the queue and publishes in batches, either when a
// batch fills or on the flush ticker.
func flushLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]cwtypes.MetricDatum, 0, maxBatch)
	for {
		select {
		case d := <-queue:
			batch = append(batch, d)
			if len(batch) >= maxBatch {
				publish(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				publish(batch)
				batch = batch[:0]
			}
		}
	}
}

func publish(batch []cwtypes.MetricDatum) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	data := make([]cwtypes.MetricDatum, len(batch))
	copy(data, batch)

	if _, err := state.client.PutMetricData(context.Background(), &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(state.namespace),
		MetricData: data,
	}); err != nil {
		logger.GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to publish CloudWatch metrics")
	}
}
