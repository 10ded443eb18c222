package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/doacao112-dotcom/Freefire/internal/attribution"
	"github.com/doacao112-dotcom/Freefire/internal/domain"
	"github.com/doacao112-dotcom/Freefire/internal/gateway"
	"github.com/doacao112-dotcom/Freefire/internal/store"
	"github.com/doacao112-dotcom/Freefire/internal/usecase"
)

type Handler struct {
	uc            *usecase.DonationUsecase
	validate      *validator.Validate
	secretPreview string
}

// NewHandler builds the HTTP handler. secretPreview is the masked gateway
// secret shown by the debug auth endpoint, never the secret itself.
func NewHandler(uc *usecase.DonationUsecase, secretPreview string) *Handler {
	return &Handler{
		uc:            uc,
		validate:      validator.New(),
		secretPreview: secretPreview,
	}
}

func (h *Handler) Routes(corsOrigins []string, sig SigConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(RecoverMiddleware)
	if sig.Secret != "" {
		r.Use(SignatureMiddleware(sig))
	}

	r.Post("/donations", h.CreateDonation)
	r.Get("/donations/{donationId}", h.GetDonation)
	r.Post("/donations/{donationId}/sync", h.SyncDonation)
	r.Post("/webhooks/skalepay", h.Webhook)
	r.Get("/healthz", h.Healthz)

	r.Get("/debug/donations", h.DebugDonations)
	r.Get("/debug/skalepay-auth", h.DebugGatewayAuth)
	r.Post("/debug/utmify-ping", h.DebugPing)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes: validation 400,
// unknown donation 404, provider failures 502, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *gateway.Error
	var repErr *attribution.Error

	switch {
	case errors.Is(err, usecase.ErrInvalidAmount),
		errors.Is(err, usecase.ErrMissingTransactionID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &gwErr), errors.As(err, &repErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket address.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		if ip := strings.TrimSpace(strings.Split(xf, ",")[0]); ip != "" {
			return ip
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return "0.0.0.0"
	}
	return host
}

func (h *Handler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	var req CreateDonationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	in := usecase.CreateInput{
		Amount:   req.Amount,
		ClientIP: clientIP(r),
	}
	if req.Customer != nil {
		in.Customer = &gateway.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
			Document: gateway.Document{
				Type:   req.Customer.Document.Type,
				Number: req.Customer.Document.Number,
			},
		}
	}
	if req.UTM != nil {
		in.UTM = &domain.UTMParams{
			Source:   req.UTM.Source,
			Medium:   req.UTM.Medium,
			Campaign: req.UTM.Campaign,
			Content:  req.UTM.Content,
			Term:     req.UTM.Term,
		}
	}

	d, err := h.uc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateDonationResp{
		DonationID:    d.ID,
		TransactionID: d.GatewayTxID,
		SecureURL:     nullable(d.Pix.SecureURL),
		CopyPaste:     nullable(d.Pix.CopyPaste),
		QRCodeURL:     nullable(d.Pix.QRCodeURL),
		ExpiresAt:     nullable(d.Pix.ExpiresAt),
		Status:        "waiting_payment",
	})
}

func (h *Handler) GetDonation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "donationId")
	d, err := h.uc.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GetDonationResp{
		DonationID: d.ID,
		Status:     string(d.Status),
		Amount:     d.Amount.String(),
		SecureURL:  nullable(d.Pix.SecureURL),
		QRCodeURL:  nullable(d.Pix.QRCodeURL),
		CopyPaste:  nullable(d.Pix.CopyPaste),
	})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var ev usecase.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := h.uc.HandleWebhook(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResp{Received: true})
}

func (h *Handler) SyncDonation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "donationId")
	status, gwStatus, err := h.uc.Sync(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SyncDonationResp{
		DonationID: id,
		Status:     string(status),
		SkalePay:   gwStatus,
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) DebugDonations(w http.ResponseWriter, r *http.Request) {
	items := make([]DebugDonationItem, 0)
	for _, d := range h.uc.List() {
		items = append(items, DebugDonationItem{
			DonationID:   d.ID,
			Status:       string(d.Status),
			Amount:       d.Amount.String(),
			SkalePayTx:   d.GatewayTxID,
			CreatedAtUTC: d.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, DebugDonationsResp{Count: len(items), Items: items})
}

func (h *Handler) DebugGatewayAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"auth":          "basic",
		"secretPreview": h.secretPreview,
	})
}

func (h *Handler) DebugPing(w http.ResponseWriter, r *http.Request) {
	orderID, err := h.uc.DebugPing(r.Context(), clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orderId": orderID})
}
