package sink

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"quoteflow/config"
	"quoteflow/internal/metrics"
	"quoteflow/logger"
	"quoteflow/models"
)

const publishBuffer = 4096

// RedisPublisher publishes each tick as JSON on a per-asset channel.
// OnTick only enqueues; a single worker goroutine does the network I/O,
// and ticks are dropped when the queue is full. A dropped quote is
// replaced by the next one within milliseconds.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	log    *logger.Entry

	queue  chan models.Tick
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRedisPublisher(cfg config.PublishConfig, log *logger.Log) *RedisPublisher {
	p := &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		prefix: cfg.ChannelPrefix,
		log:    log.WithComponent("redis_publisher"),
		queue:  make(chan models.Tick, publishBuffer),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(ctx)
	return p
}

func (p *RedisPublisher) OnTick(t models.Tick) {
	select {
	case p.queue <- t:
	default:
		metrics.Count("redis_publisher", "dropped_ticks", 1, logger.Fields{"asset": t.Asset})
	}
}

func (p *RedisPublisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.queue:
			p.publish(ctx, t)
		}
	}
}

func (p *RedisPublisher) publish(ctx context.Context, t models.Tick) {
	payload, err := json.Marshal(t)
	if err != nil {
		p.log.WithError(err).Error("tick marshal failed")
		return
	}
	subject := models.TickSubject(p.prefix, t.Asset)
	if err := p.client.Publish(ctx, subject, payload).Err(); err != nil {
		p.log.WithError(err).WithFields(logger.Fields{"subject": subject}).Warn("publish failed")
	}
}

func (p *RedisPublisher) Close() error {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
	return p.client.Close()
}
