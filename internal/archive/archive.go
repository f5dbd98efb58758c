// Package archive batches ticks into parquet files and uploads them to
// S3, partitioned by venue, kind and hour.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "quoteflow/config"
	"quoteflow/internal/metrics"
	"quoteflow/logger"
	"quoteflow/models"
)

const intakeBuffer = 8192

// TickRecord is the parquet row schema for archived ticks. Null
// bid/ask sides archive as zero with the presence flags set false.
type TickRecord struct {
	Venue        string  `parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind         string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset        string  `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	NativeSymbol string  `parquet:"name=native_symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp    int64   `parquet:"name=timestamp, type=INT64"`
	Bid          float64 `parquet:"name=bid, type=DOUBLE"`
	Ask          float64 `parquet:"name=ask, type=DOUBLE"`
	Mid          float64 `parquet:"name=mid, type=DOUBLE"`
	HasBid       bool    `parquet:"name=has_bid, type=BOOLEAN"`
	HasAsk       bool    `parquet:"name=has_ask, type=BOOLEAN"`
}

// memoryFile adapts a bytes.Buffer to the parquet source interface so
// files are assembled in memory before upload.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (m *memoryFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memoryFile) Open(string) (source.ParquetFile, error)   { return m, nil }

func (m *memoryFile) Seek(int64, int) (int64, error) {
	return int64(m.buffer.Len()), nil
}

func (m *memoryFile) Read(b []byte) (int, error)  { return m.buffer.Read(b) }
func (m *memoryFile) Write(b []byte) (int, error) { return m.buffer.Write(b) }
func (m *memoryFile) Close() error                { return nil }
func (m *memoryFile) Bytes() []byte               { return m.buffer.Bytes() }

// Archiver buffers ticks per venue/kind and flushes each buffer as one
// parquet object on the configured interval. OnTick only enqueues;
// ticks are dropped when the intake queue is full.
type Archiver struct {
	cfg      appconfig.ArchiveConfig
	s3Client *s3.Client
	log      *logger.Entry

	intake chan models.Tick
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.Mutex
	buffer map[string][]models.Tick
}

func NewArchiver(cfg appconfig.ArchiveConfig, log *logger.Log) (*Archiver, error) {
	ctx, cancel := context.WithCancel(context.Background())

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}

	a := &Archiver{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsConfig),
		log:      log.WithComponent("archive"),
		intake:   make(chan models.Tick, intakeBuffer),
		cancel:   cancel,
		buffer:   make(map[string][]models.Tick),
	}

	a.wg.Add(1)
	go a.run(ctx)

	a.log.WithFields(logger.Fields{
		"bucket":         cfg.Bucket,
		"prefix":         cfg.Prefix,
		"flush_interval": cfg.FlushInterval.String(),
	}).Info("archiver started")
	return a, nil
}

func (a *Archiver) OnTick(t models.Tick) {
	select {
	case a.intake <- t:
	default:
		metrics.Count("archive", "dropped_ticks", 1, logger.Fields{"venue": t.Venue})
	}
}

func (a *Archiver) run(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.drainIntake()
			a.flush(context.WithoutCancel(ctx), "shutdown")
			return
		case t := <-a.intake:
			a.add(t)
		case <-ticker.C:
			a.flush(ctx, "interval")
		}
	}
}

func (a *Archiver) drainIntake() {
	for {
		select {
		case t := <-a.intake:
			a.add(t)
		default:
			return
		}
	}
}

func (a *Archiver) add(t models.Tick) {
	key := t.Venue + "|" + string(t.Kind)
	a.mu.Lock()
	a.buffer[key] = append(a.buffer[key], t)
	a.mu.Unlock()
}

func (a *Archiver) flush(ctx context.Context, reason string) {
	a.mu.Lock()
	buffers := a.buffer
	a.buffer = make(map[string][]models.Tick)
	a.mu.Unlock()

	if len(buffers) == 0 {
		return
	}
	a.log.WithFields(logger.Fields{"buffers": len(buffers), "reason": reason}).Debug("flushing tick buffers")

	for _, ticks := range buffers {
		if len(ticks) == 0 {
			continue
		}
		a.upload(ctx, ticks)
	}
}

func (a *Archiver) upload(ctx context.Context, ticks []models.Tick) {
	first := ticks[0]
	log := a.log.WithFields(logger.Fields{
		"venue": first.Venue,
		"kind":  string(first.Kind),
		"ticks": len(ticks),
	})

	data, err := buildParquet(ticks)
	if err != nil {
		log.WithError(err).Error("parquet build failed")
		return
	}

	key := a.objectKey(first.Venue, string(first.Kind), time.Now().UTC())
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"s3_key": key}).Error("s3 upload failed")
		return
	}

	log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)}).Info("tick batch archived")
	metrics.Count("archive", "archived_ticks", float64(len(ticks)), logger.Fields{"venue": first.Venue})
}

func (a *Archiver) objectKey(venue, kind string, ts time.Time) string {
	key := filepath.Join(
		a.cfg.Prefix,
		fmt.Sprintf("venue=%s", venue),
		fmt.Sprintf("kind=%s", kind),
		fmt.Sprintf("%04d/%02d/%02d/%02d", ts.Year(), ts.Month(), ts.Day(), ts.Hour()),
		fmt.Sprintf("ticks_%s_%s.parquet", ts.Format("20060102150405"), uuid.NewString()[:8]),
	)
	return filepath.ToSlash(key)
}

func buildParquet(ticks []models.Tick) ([]byte, error) {
	fw := newMemoryFile()
	pw, err := writer.NewParquetWriter(fw, new(TickRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, t := range ticks {
		record := TickRecord{
			Venue:        t.Venue,
			Kind:         string(t.Kind),
			Asset:        t.Asset,
			NativeSymbol: t.NativeSymbol,
			Timestamp:    t.TS.UnixMilli(),
			Mid:          t.Mid.InexactFloat64(),
			HasBid:       t.Bid.Valid,
			HasAsk:       t.Ask.Valid,
		}
		if t.Bid.Valid {
			record.Bid = t.Bid.Decimal.InexactFloat64()
		}
		if t.Ask.Valid {
			record.Ask = t.Ask.Decimal.InexactFloat64()
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Bytes(), nil
}

// Close flushes pending buffers and stops the worker.
func (a *Archiver) Close() {
	a.once.Do(func() {
		a.cancel()
		a.wg.Wait()
	})
}
