package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Vectreal/vectreal-platform-sub000/internal/metrics"
)

// InstrumentedGateway wraps a Gateway with latency metrics and debug logging.
type InstrumentedGateway struct {
	next    Gateway
	metrics *metrics.Collector
	log     *zap.Logger
}

// NewInstrumentedGateway wraps next with per-operation instrumentation.
func NewInstrumentedGateway(next Gateway, collector *metrics.Collector, log *zap.Logger) *InstrumentedGateway {
	return &InstrumentedGateway{next: next, metrics: collector, log: log}
}

func (g *InstrumentedGateway) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	err := g.next.Upload(ctx, key, data, contentType)
	g.metrics.ObserveStorageOp("upload", time.Since(start), err)
	if err != nil {
		g.log.Warn("storage upload failed", zap.String("key", key), zap.Error(err))
	} else {
		g.log.Debug("storage upload",
			zap.String("key", key),
			zap.Int("bytes", len(data)),
			zap.Duration("took", time.Since(start)))
	}
	return err
}

func (g *InstrumentedGateway) Download(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := g.next.Download(ctx, key)
	g.metrics.ObserveStorageOp("download", time.Since(start), err)
	if err != nil {
		g.log.Warn("storage download failed", zap.String("key", key), zap.Error(err))
	}
	return data, err
}

func (g *InstrumentedGateway) Delete(ctx context.Context, key string, ignoreMissing bool) error {
	start := time.Now()
	err := g.next.Delete(ctx, key, ignoreMissing)
	g.metrics.ObserveStorageOp("delete", time.Since(start), err)
	if err != nil {
		g.log.Warn("storage delete failed", zap.String("key", key), zap.Error(err))
	}
	return err
}
