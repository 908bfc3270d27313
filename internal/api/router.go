package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter constructs the router with all API endpoints registered.
func NewRouter(svc Services) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/purchase", h.ProcessPurchaseHandler)

	r.Get("/user/{wallet}/balance", h.GetBalanceHandler)
	r.Get("/user/{wallet}/ledger", h.ListEntriesHandler)
	r.Get("/user/{wallet}/withdrawals", h.ListWithdrawalsHandler)

	r.Post("/withdrawal/quote", h.QuoteWithdrawalHandler)
	r.Post("/withdrawal", h.SubmitWithdrawalHandler)
	r.Get("/withdrawal/{withdrawalId}", h.GetWithdrawalHandler)
	r.Post("/withdrawal/{withdrawalId}/status", h.SetWithdrawalStatusHandler)

	r.Post("/settlement", h.SettleWinHandler)
	r.Post("/stake", h.PlaceStakeHandler)

	return r
}
