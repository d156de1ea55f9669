package handlers

import (
	"math"
	"net/http"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
)

// ValuationHandler serves the stateless calculation API. Request bodies are
// decoded over the current defaults, so a client only sends what differs.
type ValuationHandler struct {
	svc          appvaluation.Service
	logger       logging.Logger
	maxBodyBytes int64
}

func NewValuationHandler(svc appvaluation.Service, logger logging.Logger, maxBodyBytes int64) *ValuationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ValuationHandler{svc: svc, logger: logger.Named("http.valuation"), maxBodyBytes: maxBodyBytes}
}

// Defaults handles GET /api/v1/defaults.
func (h *ValuationHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Defaults())
}

// NPV handles POST /api/v1/npv. The body is a ValuationInputs object.
func (h *ValuationHandler) NPV(w http.ResponseWriter, r *http.Request) {
	in := h.svc.Defaults().Inputs
	if err := decodeJSON(w, r, h.maxBodyBytes, npvSchema, &in); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.NPV(r.Context(), in)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Deal handles POST /api/v1/deal.
func (h *ValuationHandler) Deal(w http.ResponseWriter, r *http.Request) {
	req := appvaluation.DealRequest{Inputs: h.svc.Defaults().Inputs}
	// JSON cannot carry NaN, so it marks a discount rate the body left out.
	req.Terms.DiscountRate = math.NaN()
	if err := decodeJSON(w, r, h.maxBodyBytes, dealSchema, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if math.IsNaN(req.Terms.DiscountRate) {
		req.Terms.DiscountRate = req.Inputs.DiscountRate
	}
	res, err := h.svc.Deal(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Strategy handles POST /api/v1/strategy.
func (h *ValuationHandler) Strategy(w http.ResponseWriter, r *http.Request) {
	req := appvaluation.StrategyRequest{Inputs: h.svc.Defaults().Inputs}
	if err := decodeJSON(w, r, h.maxBodyBytes, strategySchema, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Strategy(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LaunchPrice handles POST /api/v1/launch-price.
func (h *ValuationHandler) LaunchPrice(w http.ResponseWriter, r *http.Request) {
	req := appvaluation.LaunchPriceRequest{Inputs: h.svc.Defaults().LaunchPrice}
	if err := decodeJSON(w, r, h.maxBodyBytes, launchPriceSchema, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.LaunchPrice(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sensitivity handles POST /api/v1/sensitivity.
func (h *ValuationHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	req := appvaluation.SensitivityRequest{Inputs: h.svc.Defaults().Inputs}
	if err := decodeJSON(w, r, h.maxBodyBytes, sensitivitySchema, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Sensitivity(r.Context(), &req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
