package handler

import (
	"errors"
	"net/http"
	"strconv"

	"course-billing/internal/dto"
	"course-billing/internal/gateway"
	"course-billing/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// genericCheckoutError is what end users see; provider error bodies can
// carry account details and never leave the logs.
const genericCheckoutError = "payment setup failed"

type BillingHandler struct {
	billingService service.BillingService
	log            *logrus.Entry
}

func NewBillingHandler(billingService service.BillingService, log *logrus.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		log:            log.WithField("component", "billing_handler"),
	}
}

func (h *BillingHandler) CreateCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProductID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id is required")
	}

	resp, err := h.billingService.CreateCheckout(ctx, &req)
	if err != nil {
		h.log.WithError(err).WithField("product_id", req.ProductID).Error("checkout creation failed")
		switch gateway.KindOf(err) {
		case gateway.ErrInvalidProduct, gateway.ErrValidation:
			return echo.NewHTTPError(http.StatusUnprocessableEntity, genericCheckoutError)
		default:
			return echo.NewHTTPError(http.StatusBadGateway, genericCheckoutError)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *BillingHandler) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()

	filter := gateway.ProductFilter{Status: c.QueryParam("status")}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(c.QueryParam("per_page")); err == nil {
		filter.PerPage = perPage
	}

	products, err := h.billingService.GetProducts(ctx, filter)
	if err != nil {
		h.log.WithError(err).Error("product listing failed")
		return echo.NewHTTPError(http.StatusBadGateway, "product catalogue unavailable")
	}
	return c.JSON(http.StatusOK, products)
}

func (h *BillingHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	product, err := h.billingService.GetProduct(ctx, c.Param("id"))
	if err != nil {
		if gateway.KindOf(err) == gateway.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		h.log.WithError(err).Error("product read failed")
		return echo.NewHTTPError(http.StatusBadGateway, "product catalogue unavailable")
	}
	return c.JSON(http.StatusOK, product)
}

func (h *BillingHandler) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	sub, err := h.billingService.GetSubscription(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
		}
		h.log.WithError(err).Error("subscription read failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "subscription unavailable")
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *BillingHandler) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()
	subscriptionID := c.Param("id")

	if err := h.billingService.CancelSubscription(ctx, subscriptionID); err != nil {
		if gateway.KindOf(err) == gateway.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
		}
		h.log.WithError(err).WithField("subscription_id", subscriptionID).Error("cancellation failed")
		return echo.NewHTTPError(http.StatusBadGateway, "cancellation failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "cancellation_requested"})
}

func (h *BillingHandler) GetCustomerSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	subs, err := h.billingService.GetCustomerSubscriptions(ctx, c.Param("id"))
	if err != nil {
		h.log.WithError(err).Error("customer subscription listing failed")
		return echo.NewHTTPError(http.StatusBadGateway, "subscriptions unavailable")
	}
	return c.JSON(http.StatusOK, subs)
}

func (h *BillingHandler) GetCustomerTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	filter := gateway.TransactionFilter{}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(c.QueryParam("per_page")); err == nil {
		filter.PerPage = perPage
	}

	txs, err := h.billingService.GetCustomerTransactions(ctx, c.Param("id"), filter)
	if err != nil {
		h.log.WithError(err).Error("customer transaction listing failed")
		return echo.NewHTTPError(http.StatusBadGateway, "transactions unavailable")
	}
	return c.JSON(http.StatusOK, txs)
}

func (h *BillingHandler) GatewayHealth(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.billingService.TestGatewayConnection(ctx); err != nil {
		h.log.WithError(err).Warn("gateway connection test failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"kind":   string(gateway.KindOf(err)),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
