package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"StockKeeper/internal/inventory"
	"StockKeeper/internal/operator"
	"StockKeeper/internal/snapshot"
	"StockKeeper/pkg/kit"
)

const (
	maxBodyBytes     = 1 << 20
	loginLimitPerMin = 5
	limitWindow      = 60 * time.Second
	readyTimeout     = 1 * time.Second
)

// Server exposes one inventory.Store over HTTP. The store is not
// goroutine-safe, so every handler holds mu while touching Store or Journal.
type Server struct {
	Log      *zap.Logger
	Store    *inventory.Store
	Journal  *inventory.Lines
	Backend  snapshot.Backend
	Operator *operator.Credentials
	JWT      *operator.TokenMaker

	mu      sync.Mutex
	metrics *StockMetrics
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.handleReady)

	loginLimiter := kit.NewIPRateLimiter(loginLimitPerMin, limitWindow)
	r.With(loginLimiter.Middleware).Post("/auth/login", s.handleLogin)

	r.Get("/items", s.handleList)
	r.Get("/items/{item}", s.handleGet)
	r.Get("/low-stock", s.handleLowStock)
	r.Get("/report", s.handleReport)

	r.Group(func(pr chi.Router) {
		pr.Use(operator.Require(s.JWT))
		pr.Post("/stock/add", s.handleAdd)
		pr.Post("/stock/remove", s.handleRemove)
		pr.Post("/snapshot/save", s.handleSave)
		pr.Post("/snapshot/load", s.handleLoad)
		pr.Get("/journal", s.handleJournal)
	})

	return r
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Backend == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Backend.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err), zap.Stringer("backend", s.Backend))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeBody(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.Password == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "password required", nil)
		return
	}
	if req.Name == "" {
		req.Name = operator.DefaultName
	}

	if s.Operator == nil || s.Operator.Verify(req.Name, req.Password) != nil {
		kit.WriteError(w, r, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	tok, err := s.JWT.New(s.Operator.Name, operator.DefaultTokenTTL)
	if err != nil {
		s.logger().Error("token issue", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, loginResp{AccessToken: tok})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := s.Store.Items()
	s.mu.Unlock()

	kit.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := itemParam(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad item name", map[string]any{"cause": err.Error()})
		return
	}

	s.mu.Lock()
	qty := s.Store.Quantity(item)
	s.mu.Unlock()

	kit.WriteJSON(w, http.StatusOK, inventory.Entry{Item: item, Qty: qty})
}

// itemParam returns the decoded {item} segment. chi routes on RawPath when
// the request carries one (e.g. an escaped "/"), leaving the param escaped.
func itemParam(r *http.Request) (string, error) {
	item := chi.URLParam(r, "item")
	if r.URL.RawPath == "" {
		return item, nil
	}
	return url.PathUnescape(item)
}

type lowStockResp struct {
	Threshold int      `json:"threshold"`
	Items     []string `json:"items"`
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := inventory.DefaultLowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "threshold must be an integer", map[string]any{"threshold": v})
			return
		}
		threshold = n
	}

	s.mu.Lock()
	items := s.Store.LowStock(threshold)
	s.mu.Unlock()

	kit.WriteJSON(w, http.StatusOK, lowStockResp{Threshold: threshold, Items: items})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer

	s.mu.Lock()
	err := s.Store.Report(&buf)
	s.mu.Unlock()

	if err != nil {
		s.logger().Error("report failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteText(w, http.StatusOK, buf.Bytes())
}

type stockReq struct {
	Item any `json:"item"`
	Qty  any `json:"qty"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, opAdd, func(req stockReq) error {
		return s.Store.AddValue(req.Item, req.Qty, s.journal())
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, opRemove, func(req stockReq) error {
		return s.Store.RemoveValue(req.Item, req.Qty)
	})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, apply func(stockReq) error) {
	var req stockReq
	if err := decodeBody(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	kit.AddLogFields(r.Context(), zap.String("op", op), zap.Any("item", req.Item))

	s.mu.Lock()
	err := apply(req)
	var qty int
	if name, ok := req.Item.(string); ok {
		qty = s.Store.Quantity(name)
	}
	s.mu.Unlock()

	s.metrics.observe(op, err)

	switch {
	case err == nil:
		kit.WriteJSON(w, http.StatusOK, inventory.Entry{Item: req.Item.(string), Qty: qty})
	case errors.Is(err, inventory.ErrInvalidItem):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid item", map[string]any{"item": req.Item})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid quantity", map[string]any{"qty": req.Qty})
	case errors.Is(err, inventory.ErrItemNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"item": req.Item})
	default:
		s.logger().Error("stock update failed", zap.Error(err), zap.String("op", op))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) journal() inventory.Journal {
	if s.Journal == nil {
		return nil
	}
	return s.Journal
}

type snapshotResp struct {
	Backend string `json:"backend"`
	Items   int    `json:"items"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.Backend == nil {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "no snapshot backend", nil)
		return
	}

	s.mu.Lock()
	snap := s.Store.Items()
	s.mu.Unlock()

	if err := s.Backend.Save(r.Context(), snap); err != nil {
		s.writeBackendError(w, r, "save", err)
		return
	}

	s.logger().Info("snapshot saved", zap.Stringer("backend", s.Backend), zap.Int("items", len(snap)))
	kit.WriteJSON(w, http.StatusOK, snapshotResp{Backend: s.Backend.String(), Items: len(snap)})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.Backend == nil {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "no snapshot backend", nil)
		return
	}

	snap, err := s.Backend.Load(r.Context())
	if err != nil {
		s.writeBackendError(w, r, "load", err)
		return
	}

	s.mu.Lock()
	err = s.Store.Restore(snap)
	n := s.Store.Len()
	s.mu.Unlock()

	if err != nil {
		s.writeBackendError(w, r, "load", err)
		return
	}

	s.logger().Info("snapshot loaded", zap.Stringer("backend", s.Backend), zap.Int("items", n))
	kit.WriteJSON(w, http.StatusOK, snapshotResp{Backend: s.Backend.String(), Items: n})
}

func (s *Server) writeBackendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		kit.WriteError(w, r, http.StatusNotFound, "no snapshot", nil)
	case errors.Is(err, inventory.ErrMalformedSnapshot):
		kit.WriteError(w, r, http.StatusUnprocessableEntity, "malformed snapshot", map[string]any{"cause": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.logger().Error("snapshot "+op+" failed", zap.Error(err), zap.Stringer("backend", s.Backend))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) handleJournal(w http.ResponseWriter, _ *http.Request) {
	lines := []string{}
	s.mu.Lock()
	if s.Journal != nil {
		lines = s.Journal.All()
	}
	s.mu.Unlock()

	kit.WriteJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after json object")
	}
	return nil
}
