package export

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rpattn/streamgate/internal/domain"

	"go.uber.org/zap"
)

// HistoryReader returns the visible history, newest first.
type HistoryReader interface {
	Snapshot() []domain.Event
}

type Handler struct {
	service *Service
	history HistoryReader
	now     func() time.Time
	logger  *zap.Logger
}

// NewHTTPHandler serves `GET ?format=csv|xlsx` downloads of the history.
func NewHTTPHandler(service *Service, history HistoryReader, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, history: history, now: time.Now, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Write(&buf, format, h.history.Snapshot()); err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("history export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	filename := format.FileName(h.now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
