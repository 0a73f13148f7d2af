package bridge

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	// Username and PasswordHash enable HTTP Basic auth on every route
	// except /health. PasswordHash is a bcrypt hash.
	Username     string
	PasswordHash string
	// MCP is mounted on /mcp when set.
	MCP http.Handler

	Logger *slog.Logger
}

const maxBody = 1 << 20

// NewHTTPHandler exposes r over HTTP.
//
//	GET  /health
//	POST /api/orders                      PROCESS_ORDER
//	GET  /api/orders/history              GET_ORDER_HISTORY
//	POST /api/orders/{orderID}/retry      RETRY_ORDER
//	GET  /api/orders/{orderID}/status     CHECK_ORDER_STATUS
//	GET  /api/inflight                    GET_IN_FLIGHT
//	GET  /api/detect?url=                 DETECT_PLATFORM
//	POST /api/messages/{type}             any registered message
func NewHTTPHandler(r *Router, cfg HTTPConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer, headToGet, securityHeaders, traceID(logger))

	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Group(func(g chi.Router) {
		if cfg.PasswordHash != "" {
			g.Use(basicAuth(cfg.Username, cfg.PasswordHash))
		}

		g.Post("/api/orders", r.forwardBody(ProcessOrder))
		g.Get("/api/orders/history", r.forward(GetOrderHistory, nil))
		g.Post("/api/orders/{orderID}/retry", r.forward(RetryOrder, orderIDPayload))
		g.Get("/api/orders/{orderID}/status", r.forward(CheckOrderStatus, orderIDPayload))
		g.Get("/api/inflight", r.forward(GetInFlight, nil))
		g.Get("/api/detect", r.forward(DetectPlatform, func(req *http.Request) any {
			return map[string]string{"url": req.URL.Query().Get("url")}
		}))
		g.Post("/api/messages/{type}", func(w http.ResponseWriter, req *http.Request) {
			r.serve(w, req, chi.URLParam(req, "type"))
		})
		if cfg.MCP != nil {
			g.Handle("/mcp", cfg.MCP)
			g.Handle("/mcp/*", cfg.MCP)
		}
	})
	return mux
}

func orderIDPayload(req *http.Request) any {
	return map[string]string{"orderId": chi.URLParam(req, "orderID")}
}

func (r *Router) forwardBody(msgType string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.serve(w, req, msgType)
	}
}

func (r *Router) forward(msgType string, build func(*http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var payload []byte
		if build != nil {
			b, err := json.Marshal(build(req))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			payload = b
		}
		r.respond(w, req, msgType, payload)
	}
}

func (r *Router) serve(w http.ResponseWriter, req *http.Request, msgType string) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errors.New("body is not JSON"))
		return
	}
	r.respond(w, req, msgType, body)
}

func (r *Router) respond(w http.ResponseWriter, req *http.Request, msgType string, payload []byte) {
	out, err := r.Call(req.Context(), msgType, payload)
	if err != nil {
		RequestLogger(req.Context()).Warn("bridge: call failed", "type", msgType, "error", err)
		var unknown *ErrUnknownMessage
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func basicAuth(username, hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user, pass, ok := req.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="autobuy"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
