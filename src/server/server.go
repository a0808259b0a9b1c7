package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/model"
)

// LedgerReader serves the current slot snapshots for the status API.
type LedgerReader interface {
	All(ctx context.Context) ([]model.OrderSnapshot, error)
}

func newRouter(ledger LedgerReader) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthz write error")
		}
	})

	r.Get("/positions", func(w http.ResponseWriter, req *http.Request) {
		snaps, err := ledger.All(req.Context())
		if err != nil {
			logger.WithError(err).Error("/positions ledger read failed")
			http.Error(w, "ledger unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snaps); err != nil {
			logger.WithError(err).Error("/positions encode error")
		}
	})

	return r
}

// StartServer exposes the status API until the context is cancelled:
// /healthz for liveness and /positions for the current ledger state
// (what the legacy deployment printed to the log at startup).
func StartServer(ctx context.Context, ledger LedgerReader) {
	config := GetConfig()

	r := newRouter(ledger)

	addr := ":" + config.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("status server crashed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("status server shutdown error")
	}
}
