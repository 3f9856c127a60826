package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the payment endpoints. The callback route must be
// registered without auth middleware: the gateway does not carry a bearer
// token, the HMAC over the payload is its authentication.
func (h *Handler) RegisterRoutes(api *echo.Group, callback *echo.Group) {
	staff := api.Group("", auth.RequireRole("admin", "staff"))
	staff.POST("/payment/create-payment", h.CreatePayment)

	read := api.Group("", auth.RequireRole("admin", "staff", "doctor"))
	read.GET("/payment/transactions", h.ListTransactions)
	read.GET("/payment/transactions/:id", h.GetTransaction)

	callback.POST("/payment/callback", h.Callback)
}

type createPaymentRequest struct {
	MedicalRecordID uuid.UUID `json:"medical_record_id" validate:"required"`
	Amount          int64     `json:"amount" validate:"required,gt=0"`
	Description     string    `json:"description"`
}

type createPaymentResponse struct {
	Success bool         `json:"success"`
	Payment *Transaction `json:"payment"`
	ZaloPay struct {
		OrderURL   string `json:"order_url"`
		ReturnCode int    `json:"return_code"`
	} `json:"zalopay"`
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.svc.CreatePayment(c.Request().Context(), req.MedicalRecordID, req.Amount, req.Description)
	if err != nil {
		var gwErr *GatewayError
		switch {
		case errors.Is(err, records.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "medical record not found")
		case errors.Is(err, ErrInvalidAmount):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.As(err, &gwErr):
			return echo.NewHTTPError(http.StatusBadRequest, gwErr.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	out := createPaymentResponse{Success: true, Payment: res.Transaction}
	out.ZaloPay.OrderURL = res.OrderURL
	out.ZaloPay.ReturnCode = res.ReturnCode
	return c.JSON(http.StatusCreated, out)
}

// Callback always answers 200 with a JSON acknowledgement, whatever happens
// inside, so the gateway's retry behavior stays bounded.
func (h *Handler) Callback(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		code := -1
		return c.JSON(http.StatusOK, Ack{ReturnCode: &code, ReturnMessage: "invalid callback"})
	}
	return c.JSON(http.StatusOK, h.svc.HandleCallback(c.Request().Context(), body))
}

func (h *Handler) GetTransaction(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTransaction(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transaction not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if raw := c.QueryParam("medical_record_id"); raw != "" {
		recordID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid medical_record_id")
		}
		items, total, err := h.svc.ListTransactionsByRecord(ctx, recordID, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	items, total, err := h.svc.ListTransactions(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
