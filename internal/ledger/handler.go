package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hillstead/hillstead/internal/platform/httpx"
)

// Handler exposes the installment ledger as JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/generate", h.generateSchedule)
	r.Post("/", h.createInstallment)
	r.Get("/", h.listInstallments)
	r.Get("/{id}", h.getInstallment)
	r.Patch("/{id}", h.updateInstallment)
	r.Delete("/{id}", h.deleteInstallment)
	r.Post("/{id}/payments", h.applyPayment)
	r.Get("/{id}/payments", h.listPayments)
}

type generateRequest struct {
	FileID               int64           `json:"file_id" validate:"required"`
	MemberID             int64           `json:"member_id" validate:"required"`
	PlotID               int64           `json:"plot_id" validate:"required"`
	CategoryID           int64           `json:"category_id" validate:"required"`
	StartDate            string          `json:"start_date" validate:"required"`
	Frequency            string          `json:"frequency" validate:"required,oneof=MONTHLY QUARTERLY HALF_YEARLY YEARLY"`
	Count                int             `json:"count" validate:"required,min=1"`
	AmountPerInstallment decimal.Decimal `json:"amount_per_installment"`
	TitleTemplate        string          `json:"title_template"`
	ObligationType       string          `json:"obligation_type"`
	ActorID              int64           `json:"actor_id"`
}

func (h *Handler) generateSchedule(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start_date must be YYYY-MM-DD")
		return
	}

	created, err := h.service.GenerateSchedule(r.Context(), GenerateInput{
		FileID:               req.FileID,
		MemberID:             req.MemberID,
		PlotID:               req.PlotID,
		CategoryID:           req.CategoryID,
		StartDate:            startDate,
		Frequency:            Frequency(req.Frequency),
		Count:                req.Count,
		AmountPerInstallment: req.AmountPerInstallment,
		TitleTemplate:        req.TitleTemplate,
		ObligationType:       req.ObligationType,
		CreatedBy:            req.ActorID,
	})
	if err != nil {
		h.respondError(w, err, "generate schedule")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"installments": created})
}

type createRequest struct {
	FileID           int64           `json:"file_id" validate:"required"`
	MemberID         int64           `json:"member_id" validate:"required"`
	PlotID           int64           `json:"plot_id" validate:"required"`
	CategoryID       int64           `json:"category_id" validate:"required"`
	InstallmentNo    int             `json:"installment_no" validate:"required,min=1"`
	Title            string          `json:"title"`
	ObligationType   string          `json:"obligation_type"`
	DueDate          string          `json:"due_date" validate:"required"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	LateFeeSurcharge decimal.Decimal `json:"late_fee_surcharge"`
	ActorID          int64           `json:"actor_id"`
}

func (h *Handler) createInstallment(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
		return
	}

	created, err := h.service.CreateInstallment(r.Context(), Installment{
		FileID:           req.FileID,
		MemberID:         req.MemberID,
		PlotID:           req.PlotID,
		CategoryID:       req.CategoryID,
		InstallmentNo:    req.InstallmentNo,
		Title:            req.Title,
		ObligationType:   req.ObligationType,
		DueDate:          dueDate,
		AmountDue:        req.AmountDue,
		LateFeeSurcharge: req.LateFeeSurcharge,
		CreatedBy:        req.ActorID,
	})
	if err != nil {
		h.respondError(w, err, "create installment")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}
	inst, err := h.service.GetInstallment(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get installment")
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

func (h *Handler) listInstallments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		FileID:     queryInt64(q.Get("file_id")),
		MemberID:   queryInt64(q.Get("member_id")),
		PlotID:     queryInt64(q.Get("plot_id")),
		CategoryID: queryInt64(q.Get("category_id")),
		Status:     Status(q.Get("status")),
		Page:       int(queryInt64(q.Get("page"))),
		PerPage:    int(queryInt64(q.Get("per_page"))),
	}
	if v := q.Get("due_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DueFrom = t
		}
	}
	if v := q.Get("due_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DueTo = t
		}
	}

	entries, pagination, err := h.service.ListInstallments(r.Context(), filter)
	if err != nil {
		h.respondError(w, err, "list installments")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"installments": entries,
		"pagination":   pagination,
	})
}

type updateRequest struct {
	Title            *string          `json:"title"`
	ObligationType   *string          `json:"obligation_type"`
	DueDate          *string          `json:"due_date"`
	InstallmentNo    *int             `json:"installment_no"`
	AmountDue        *decimal.Decimal `json:"amount_due"`
	LateFeeSurcharge *decimal.Decimal `json:"late_fee_surcharge"`
	TransactionRef   *string          `json:"transaction_ref"`
	Remarks          *string          `json:"remarks"`
	ActorID          int64            `json:"actor_id"`
}

func (h *Handler) updateInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid JSON body")
		return
	}

	patch := UpdateInput{
		Title:            req.Title,
		ObligationType:   req.ObligationType,
		InstallmentNo:    req.InstallmentNo,
		AmountDue:        req.AmountDue,
		LateFeeSurcharge: req.LateFeeSurcharge,
		TransactionRef:   req.TransactionRef,
		Remarks:          req.Remarks,
		ModifiedBy:       req.ActorID,
	}
	if req.DueDate != nil {
		t, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
			return
		}
		patch.DueDate = &t
	}

	updated, err := h.service.UpdateInstallment(r.Context(), id, patch)
	if err != nil {
		h.respondError(w, err, "update installment")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}
	actorID := queryInt64(r.URL.Query().Get("actor_id"))
	if err := h.service.SoftDelete(r.Context(), id, actorID); err != nil {
		h.respondError(w, err, "delete installment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaidDate       string          `json:"paid_date"`
	Mode           string          `json:"mode" validate:"omitempty,oneof=cash cheque online other"`
	TransactionRef string          `json:"transaction_ref"`
	Remark         string          `json:"remark"`
	ActorID        int64           `json:"actor_id"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var paidDate time.Time
	if req.PaidDate != "" {
		paidDate, err = time.Parse("2006-01-02", req.PaidDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paid_date must be YYYY-MM-DD")
			return
		}
	}

	updated, err := h.service.ApplyPayment(r.Context(), ApplyPaymentInput{
		InstallmentID:  id,
		Amount:         req.Amount,
		PaidDate:       paidDate,
		Mode:           PaymentMode(req.Mode),
		TransactionRef: req.TransactionRef,
		Remark:         req.Remark,
		ActorID:        req.ActorID,
	})
	if err != nil {
		h.respondError(w, err, "apply payment")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}
	events, err := h.service.ListPaymentEvents(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "list payments")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": events})
}

// respondError maps the ledger error taxonomy onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	var (
		notFound  *NotFoundError
		mismatch  *ReferentialMismatchError
		duplicate *DuplicateError
		invalid   *ValidationError
		immutable *ImmutableStateError
		badState  *InvalidStateError
	)
	switch {
	case errors.As(err, &notFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &mismatch):
		httpx.Problem(w, http.StatusBadRequest, "Referential Mismatch", err.Error())
	case errors.As(err, &duplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.As(err, &invalid):
		if invalid.MaxAllowed != nil {
			httpx.ProblemFields(w, http.StatusBadRequest, "Validation Failed", err.Error(), map[string]any{
				"max_allowed": invalid.MaxAllowed.StringFixed(2),
			})
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &immutable):
		httpx.Problem(w, http.StatusConflict, "Immutable State", err.Error())
	case errors.As(err, &badState):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func queryInt64(v string) int64 {
	if v == "" {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
