package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/pquerna/otp/totp"
)

// StartHTTP launches the admin HTTP server: trigger diagnostics, published
// models, foreground selection, and config reload.
func (e *Engine) StartHTTP(ctx context.Context) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/pairs", e.handlePairs)
		mux.HandleFunc("/model", e.handleModel)
		mux.HandleFunc("/select", e.handleSelect)
		mux.HandleFunc("/reload", e.handleReload)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "ok")
		})
		log.Printf("[engine] HTTP server on %s (/pairs, /model, /select, /reload, /healthz)", e.cfg.HTTPAddr)
		if err := http.ListenAndServe(e.cfg.HTTPAddr, mux); err != nil {
			log.Printf("[engine] HTTP server error: %v", err)
		}
	}()
}

// handlePairs returns the trigger diagnostics for every tracked pair.
func (e *Engine) handlePairs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(e.Diagnostics())
}

// handleModel returns the currently published model for ?pair=.
func (e *Engine) handleModel(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		http.Error(w, "missing pair parameter", http.StatusBadRequest)
		return
	}
	m := e.Model(pair)
	if m == nil {
		http.Error(w, "no model published for "+pair, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// handleSelect sets the foreground pair (POST /select?pair=BTCUSDT).
func (e *Engine) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		http.Error(w, "missing pair parameter", http.StatusBadRequest)
		return
	}
	e.SelectPair(pair)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "foreground": pair})
}

// handleReload handles POST /reload: bumps the epoch and marks every pair
// stale. Guarded by a TOTP code when RELOAD_TOTP_SECRET is configured.
func (e *Engine) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if e.cfg.ReloadTOTPSecret != "" {
		code := r.Header.Get("X-TOTP-Code")
		if code == "" {
			code = r.URL.Query().Get("code")
		}
		if !totp.Validate(code, e.cfg.ReloadTOTPSecret) {
			http.Error(w, "invalid TOTP code", http.StatusUnauthorized)
			return
		}
	}
	e.Reload("manual reload via HTTP")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
