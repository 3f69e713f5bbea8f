// Command paystack-stub emulates the slice of the Paystack transaction API
// the test environment needs. Every initialized transaction verifies as
// successful, which lets payment flows run end to end without provider
// credentials.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
)

func main() {
	addr := flag.String("addr", ":8089", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transaction/initialize", initialize)
	mux.HandleFunc("GET /transaction/verify/{reference}", verify)

	slog.Info("paystack stub listening", slog.String("addr", *addr))
	if err := http.ListenAndServe(*addr, mux); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func initialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request"})
		return
	}

	slog.Info("initialize", slog.String("reference", req.Reference), slog.Int64("amount", req.Amount))
	writeJSON(w, http.StatusOK, envelope{
		Status:  true,
		Message: "Authorization URL created",
		Data: map[string]any{
			"authorization_url": "http://" + r.Host + "/pay/" + req.Reference,
			"access_code":       "stub_" + req.Reference,
			"reference":         req.Reference,
		},
	})
}

func verify(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")

	slog.Info("verify", slog.String("reference", reference))
	writeJSON(w, http.StatusOK, envelope{
		Status:  true,
		Message: "Verification successful",
		Data: map[string]any{
			"status":    "success",
			"reference": reference,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.String("error", err.Error()))
	}
}
