package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"course-billing/internal/gateway"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// signatureHeader is looked up through http.Header, which canonicalizes
// names, so any casing the provider sends matches.
const signatureHeader = "X-Signature"

// Attribute keys scrubbed from payloads before logging.
var redactedAttributes = []string{
	"user_email", "user_name", "billing_address", "tax_address",
	"card_brand", "card_last_four",
}

// WebhookHandler is the network-facing boundary for provider event
// notifications. Each request walks content validation, signature
// validation, envelope parsing, and dispatch; a failure at any step rejects
// the delivery with a status the provider's retry policy understands.
type WebhookHandler struct {
	gateways map[string]gateway.PaymentGateway
	log      *logrus.Entry

	// invalidSignatures counts present-but-wrong signatures only; missing
	// headers are usually misconfiguration, not an attack, and are kept
	// out of the anomaly signal.
	invalidSignatures atomic.Int64
}

func NewWebhookHandler(log *logrus.Logger, gateways ...gateway.PaymentGateway) *WebhookHandler {
	byID := make(map[string]gateway.PaymentGateway, len(gateways))
	for _, gw := range gateways {
		byID[gw.ID()] = gw
	}
	return &WebhookHandler{
		gateways: byID,
		log:      log.WithField("component", "webhook_handler"),
	}
}

// InvalidSignatureCount exposes the anomaly counter for alerting.
func (h *WebhookHandler) InvalidSignatureCount() int64 {
	return h.invalidSignatures.Load()
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	req := c.Request()
	providerID := c.Param("provider")

	gw, ok := h.gateways[providerID]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown provider"})
	}

	log := h.log.WithFields(logrus.Fields{
		"provider":    providerID,
		"delivery_id": uuid.NewString(),
	})
	log.Info("webhook request received")

	// Nothing is trustworthy before the signature check, and there is no
	// signature to check over a body we are not prepared to accept.
	contentType := req.Header.Get(echo.HeaderContentType)
	if !strings.Contains(contentType, echo.MIMEApplicationJSON) {
		log.WithField("content_type", contentType).Error("invalid content type")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid content type"})
	}

	rawBody, err := io.ReadAll(req.Body)
	if err != nil {
		log.WithError(err).Error("failed to read request body")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	signature := req.Header.Get(signatureHeader)
	if signature == "" {
		log.Error("missing webhook signature")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing signature"})
	}

	if !gw.ValidateWebhookSignature(rawBody, signature, req.Header) {
		h.invalidSignatures.Add(1)
		log.Error("webhook signature validation failed")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	var envelope gateway.WebhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		log.WithError(err).Error("malformed webhook payload")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
	}
	if envelope.Meta.EventName == "" {
		log.Error("webhook payload missing event name")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing event name"})
	}

	log.WithFields(logrus.Fields{
		"event":   envelope.Meta.EventName,
		"payload": redactPayload(envelope.Data),
	}).Debug("webhook payload")

	if err := gw.HandleWebhook(req.Context(), &envelope, req.Header); err != nil {
		// A server-error status hands the decision back to the provider's
		// retry policy; the endpoint never decides to give up.
		log.WithError(err).WithField("event", envelope.Meta.EventName).Error("webhook processing failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "processing failed"})
	}

	log.WithField("event", envelope.Meta.EventName).Info("webhook processed")
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// redactPayload strips customer PII and payment-method details so the raw
// payload can be logged for debugging.
func redactPayload(data json.RawMessage) map[string]interface{} {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return map[string]interface{}{"unparseable": true}
	}
	attrs, ok := payload["attributes"].(map[string]interface{})
	if !ok {
		return payload
	}
	for _, key := range redactedAttributes {
		if _, present := attrs[key]; present {
			attrs[key] = "[REDACTED]"
		}
	}
	return payload
}
