package controllers

import (
	"bytes"
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepass/coursepass/app/models"
	"github.com/coursepass/coursepass/internal/pkg/config"
	"github.com/coursepass/coursepass/internal/pkg/ledger"
	"github.com/coursepass/coursepass/internal/pkg/signature"
	"github.com/coursepass/coursepass/internal/pkg/webhook"
)

const (
	testGateway = "payform"
	testSecret  = "payform-secret"
)

type stubLedger struct {
	processed map[string]bool
	failing   bool
}

func (s *stubLedger) HasProcessed(_ context.Context, gateway, marker string) (bool, error) {
	if s.failing {
		return false, assert.AnError
	}
	return s.processed[gateway+"/"+marker], nil
}

func (s *stubLedger) Grant(_ context.Context, marker *models.ProcessedNotification, _ int64, _ string, _ int, _ time.Time) (bool, error) {
	s.processed[marker.Gateway+"/"+marker.Marker] = true
	return true, nil
}

func (s *stubLedger) Acknowledge(_ context.Context, marker *models.ProcessedNotification) (bool, error) {
	s.processed[marker.Gateway+"/"+marker.Marker] = true
	return true, nil
}

func (s *stubLedger) Resource(_ context.Context, resourceID string) (*models.Resource, error) {
	if resourceID != "course-a" {
		return nil, ledger.ErrNotFound
	}
	return &models.Resource{ResourceID: resourceID, ChannelID: "-100999", DurationDays: 30}, nil
}

func webhookTestApp(sl *stubLedger) *fiber.App {
	cfg := &config.Config{
		Gateways: map[string]config.Gateway{
			testGateway: {Name: testGateway, Secret: testSecret, Enabled: true},
			"legacy":    {Name: "legacy", Secret: "old", Enabled: false},
		},
	}
	wc := NewWebhookController(cfg, webhook.NewProcessor(cfg, sl), nil, nil)

	app := fiber.New()
	app.Post("/webhook/:gateway", wc.HandleNotification)
	return app
}

func signedBody(fields map[string]string) ([]byte, string) {
	sig := signature.Sign(signature.BuildFromForm(fields), testSecret)
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	return []byte(vals.Encode()), sig
}

func paidFields() map[string]string {
	return map[string]string{
		"order_id":       "42:course-a",
		"order_num":      "pf-1001",
		"payment_status": "success",
		"sum":            "100.00",
	}
}

func postWebhook(app *fiber.App, path string, body []byte, sig string) int {
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, "application/x-www-form-urlencoded")
	if sig != "" {
		req.Header.Set("Sign", sig)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestWebhookEndpointAppliesPaidNotification(t *testing.T) {
	sl := &stubLedger{processed: map[string]bool{}}
	app := webhookTestApp(sl)
	body, sig := signedBody(paidFields())

	status := postWebhook(app, "/webhook/payform", body, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, sl.processed["payform/pf-1001"])
}

func TestWebhookEndpointDuplicateStillReturns200(t *testing.T) {
	sl := &stubLedger{processed: map[string]bool{}}
	app := webhookTestApp(sl)
	body, sig := signedBody(paidFields())

	require.Equal(t, fiber.StatusOK, postWebhook(app, "/webhook/payform", body, sig))
	assert.Equal(t, fiber.StatusOK, postWebhook(app, "/webhook/payform", body, sig))
}

func TestWebhookEndpointStatusMapping(t *testing.T) {
	sl := &stubLedger{processed: map[string]bool{}}
	app := webhookTestApp(sl)
	body, sig := signedBody(paidFields())

	// Unknown and disabled gateways are refused before any processing.
	assert.Equal(t, fiber.StatusNotFound, postWebhook(app, "/webhook/unknown", body, sig))
	assert.Equal(t, fiber.StatusGone, postWebhook(app, "/webhook/legacy", body, sig))

	// Missing signature.
	assert.Equal(t, fiber.StatusBadRequest, postWebhook(app, "/webhook/payform", body, ""))

	// Invalid signature.
	assert.Equal(t, fiber.StatusForbidden, postWebhook(app, "/webhook/payform", body, "deadbeef"))

	// Undecodable order token.
	badOrder := paidFields()
	badOrder["order_id"] = "garbage"
	bBody, bSig := signedBody(badOrder)
	assert.Equal(t, fiber.StatusBadRequest, postWebhook(app, "/webhook/payform", bBody, bSig))
}

func TestWebhookEndpointLedgerOutageAsksForRedelivery(t *testing.T) {
	sl := &stubLedger{processed: map[string]bool{}, failing: true}
	app := webhookTestApp(sl)
	body, sig := signedBody(paidFields())

	assert.Equal(t, fiber.StatusInternalServerError, postWebhook(app, "/webhook/payform", body, sig))
}
