package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Doot-Foundation/example/internal/models"
)

// JSONOutputHandler writes one JSON object per record to w and remembers the
// latest record per token.
type JSONOutputHandler struct {
	mu     sync.Mutex
	enc    *json.Encoder
	latest map[string]models.PriceRecord
	nextID int64
}

func NewJSONOutputHandler(w io.Writer) *JSONOutputHandler {
	return &JSONOutputHandler{
		enc:    json.NewEncoder(w),
		latest: make(map[string]models.PriceRecord),
	}
}

func (h *JSONOutputHandler) WritePrice(_ context.Context, record *models.PriceRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	record.ID = h.nextID
	if err := h.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode price for %s: %w", record.Token, err)
	}
	h.latest[record.Token] = *record
	return nil
}

func (h *JSONOutputHandler) GetLatestPrice(_ context.Context, token string) (*models.PriceRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.latest[models.NormalizeToken(token)]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (h *JSONOutputHandler) Close() error {
	return nil
}
