package inspector

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/app/httpserver"
)

const defaultRequestTimeout = 30 * time.Second

type handler struct {
	insp   *Inspector
	logger *zap.Logger
}

// NewRouter mounts the inspector endpoints:
//
//	GET /health
//	GET /metrics
//	GET /v1/chain
//	GET /v1/signatures/{user}?contract=0x...&contract=0x...
func NewRouter(insp *Inspector, logger *zap.Logger, requestTimeout time.Duration) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	h := &handler{insp: insp, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/chain", httpserver.HandleError(h.chain))
		r.Get("/signatures/{user}", httpserver.HandleError(h.signature))
	})
	return r
}

func (h *handler) chain(w http.ResponseWriter, r *http.Request) error {
	report, err := h.insp.Inspect(r.Context())
	if err != nil {
		h.logger.Warn("chain inspection failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		return err
	}
	httpserver.WriteJSON(w, http.StatusOK, report)
	return nil
}

func (h *handler) signature(w http.ResponseWriter, r *http.Request) error {
	user, ok := parseAddress(chi.URLParam(r, "user"))
	if !ok {
		return apperrors.BadRequestError(nil, "invalid user address")
	}

	var contracts []common.Address
	for _, raw := range r.URL.Query()["contract"] {
		for _, part := range strings.Split(raw, ",") {
			addr, ok := parseAddress(part)
			if !ok {
				return apperrors.BadRequestError(nil, "invalid contract address "+strings.TrimSpace(part))
			}
			contracts = append(contracts, addr)
		}
	}

	status, err := h.insp.SignatureStatus(r.Context(), user, contracts)
	if err != nil {
		return err
	}
	httpserver.WriteJSON(w, http.StatusOK, status)
	return nil
}

func parseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}
