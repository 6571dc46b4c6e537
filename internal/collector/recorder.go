package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/Doot-Foundation/example/internal/metrics"
	"github.com/Doot-Foundation/example/internal/models"
	"github.com/Doot-Foundation/example/internal/output"
)

// Client is the retrieval surface Recorder wraps.
type Client interface {
	GetFromAPI(ctx context.Context, token string) (*models.ClientResult, error)
	GetFromL2(ctx context.Context, token string) (*models.ClientResult, error)
	GetFromL1(ctx context.Context, token string) (*models.ClientResult, error)
	GetData(ctx context.Context, token string) (*models.ClientResult, error)
	IsKeyValid(ctx context.Context) (bool, error)
}

// Recorder is a Client that writes every successful retrieval to an output
// handler. Write failures are logged and never fail the retrieval.
type Recorder struct {
	Client
	handler output.OutputHandler
	metrics *metrics.Collector
	now     func() time.Time
}

func NewRecorder(c Client, handler output.OutputHandler, m *metrics.Collector) *Recorder {
	return &Recorder{Client: c, handler: handler, metrics: m, now: time.Now}
}

func (r *Recorder) GetFromAPI(ctx context.Context, token string) (*models.ClientResult, error) {
	return r.record(ctx, token)(r.Client.GetFromAPI(ctx, token))
}

func (r *Recorder) GetFromL2(ctx context.Context, token string) (*models.ClientResult, error) {
	return r.record(ctx, token)(r.Client.GetFromL2(ctx, token))
}

func (r *Recorder) GetFromL1(ctx context.Context, token string) (*models.ClientResult, error) {
	return r.record(ctx, token)(r.Client.GetFromL1(ctx, token))
}

func (r *Recorder) GetData(ctx context.Context, token string) (*models.ClientResult, error) {
	return r.record(ctx, token)(r.Client.GetData(ctx, token))
}

func (r *Recorder) record(ctx context.Context, token string) func(*models.ClientResult, error) (*models.ClientResult, error) {
	return func(res *models.ClientResult, err error) (*models.ClientResult, error) {
		if err != nil {
			return res, err
		}

		record := models.NewPriceRecord(res, r.now().UTC())
		if record.Token == "" {
			record.Token = models.NormalizeToken(token)
		}
		if werr := r.handler.WritePrice(ctx, record); werr != nil {
			slog.Warn("Failed to record price", "token", record.Token, "error", werr)
			return res, nil
		}
		r.metrics.ObserveWrite()
		return res, nil
	}
}
