package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"voka/internal/models"
	"voka/internal/payment"
	"voka/internal/pkg/auth"
)

// createOrderHandler starts a credits purchase for the bearer of the Authorization header.
// The product comes from the product_id query parameter.
func (handlers *handlers) createOrderHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	claims, err := auth.ParseBearer(req.Header.Get("Authorization"))
	if err != nil {
		writeFunctionError(res, err.Error(), http.StatusUnauthorized)
		return
	}

	productID, err := strconv.ParseInt(req.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		writeFunctionError(res, "missing or invalid product_id", http.StatusBadRequest)
		return
	}

	order, err := handlers.app.CreateOrder(ctx, claims, productID)
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			handlers.log.Sugar().Errorf("Failed to create order for product %d: %s", productID, err)
		}
		writeFunctionError(res, err.Error(), status)
		return
	}
	writeResponse(res, http.StatusOK, order)
}

// verifyOrderHandler receives the payment gateway webhook.
func (handlers *handlers) verifyOrderHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var webhook payment.Webhook
	if err := readJSON(req, &webhook); err != nil {
		writeFunctionError(res, err.Error(), http.StatusBadRequest)
		return
	}

	ack, err := handlers.app.VerifyOrder(ctx, &webhook)
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			handlers.log.Sugar().Errorf("Failed to verify order: %s", err)
		}
		writeFunctionError(res, err.Error(), status)
		return
	}
	writeResponse(res, http.StatusOK, ack)
}

// preflightHandler answers OPTIONS requests that the CORS middleware lets through, those
// without Access-Control-Request-Method, with the same headers a preflight gets.
func preflightHandler(res http.ResponseWriter, req *http.Request) {
	header := res.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", strings.Join(paymentCORS.AllowedMethods, ", "))
	header.Set("Access-Control-Allow-Headers", strings.Join(paymentCORS.AllowedHeaders, ", "))
	res.WriteHeader(http.StatusOK)
	res.Write([]byte("ok"))
}

func writeFunctionError(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.FunctionErrorResponse{Error: errorInfo})
}
