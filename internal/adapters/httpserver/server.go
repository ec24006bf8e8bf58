package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/rainydays/internal/adapters/export/xlsx"
	"github.com/phenrril/rainydays/internal/domain"
	"github.com/phenrril/rainydays/internal/usecase"
)

const (
	sessionCookie     = "rd_sid"
	DefaultSessionTTL = 30 * 24 * time.Hour
)

// ViewFactory opens the cart view and order history of one namespace.
type ViewFactory func(ctx context.Context, namespace string) (*usecase.CartStore, *usecase.OrderHistory, func())

type Deps struct {
	Products       *usecase.ProductUC
	Checkout       *usecase.CheckoutUC
	Views          ViewFactory
	AllowedOrigins []string
	SecureCookies  bool

	// SessionTTL is both the cookie lifetime and how long an unused session
	// keeps its cart view open.
	SessionTTL time.Duration
}

type session struct {
	cart     *usecase.CartStore
	history  *usecase.OrderHistory
	stop     func()
	lastSeen time.Time
	streams  int
}

type Server struct {
	router   *mux.Router
	products *usecase.ProductUC
	checkout *usecase.CheckoutUC
	views    ViewFactory
	secure   bool
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	sessions  map[string]*session
	lastSweep time.Time
}

func New(d Deps) http.Handler {
	return newServer(d).handler(d.AllowedOrigins)
}

func newServer(d Deps) *Server {
	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Server{
		router:   mux.NewRouter(),
		products: d.Products,
		checkout: d.Checkout,
		views:    d.Views,
		secure:   d.SecureCookies,
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]*session{},
	}
	s.routes()
	return s
}

func (s *Server) handler(allowed []string) http.Handler {
	origins := allowed
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
	})
	return Chain(s.router, c.Handler, RequestID, Recovery, Logging)
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", s.apiProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.apiProduct).Methods(http.MethodGet)
	api.HandleFunc("/facets", s.apiFacets).Methods(http.MethodGet)

	api.HandleFunc("/cart", s.apiCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", s.apiCartClear).Methods(http.MethodDelete)
	api.HandleFunc("/cart/events", s.apiCartEvents).Methods(http.MethodGet)
	api.HandleFunc("/cart/items", s.apiCartAdd).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}/increment", s.apiCartIncrement).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}/decrement", s.apiCartDecrement).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", s.apiCartRemove).Methods(http.MethodDelete)

	api.HandleFunc("/checkout", s.apiCheckout).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.apiOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/export.xlsx", s.apiOrdersExport).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- catalog ---

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ProductFilter{
		Gender: q.Get("gender"),
		Tag:    q.Get("tag"),
		Query:  q.Get("q"),
	}
	if v := q.Get("sale"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, errors.Wrap(domain.ErrInvalidArgument, "sale must be true or false"))
			return
		}
		f.OnSale = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, errors.Wrap(domain.ErrInvalidArgument, "limit must be a non-negative number"))
			return
		}
		f.Limit = n
	}
	list, err := s.products.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) apiProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.products.Get(r.Context(), domain.ProductID(mux.Vars(r)["id"]))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": p})
}

func (s *Server) apiFacets(w http.ResponseWriter, r *http.Request) {
	genders, err := s.products.Genders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tags, err := s.products.Tags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"genders": genders, "tags": tags})
}

// --- cart ---

type lineView struct {
	ID       string `json:"id"`
	Size     string `json:"size,omitempty"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

type cartView struct {
	Lines []lineView `json:"lines"`
	Count int        `json:"count"`
	Total string     `json:"total"`
}

func toCartView(c domain.Cart) cartView {
	v := cartView{Lines: make([]lineView, 0, len(c.Lines)), Count: c.ItemCount(), Total: domain.FormatPrice(c.Total())}
	for _, l := range c.Lines {
		v.Lines = append(v.Lines, lineView{
			ID:       l.ProductID.String(),
			Size:     l.Size,
			Title:    l.Title,
			Image:    l.Image,
			Price:    domain.FormatPrice(l.Price),
			Quantity: l.Quantity,
			Subtotal: domain.FormatPrice(l.Subtotal()),
		})
	}
	return v
}

func (s *Server) apiCart(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, toCartView(sess.cart.Snapshot()))
}

func (s *Server) apiCartClear(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.cart.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(sess.cart.Snapshot()))
}

type addItemReq struct {
	ID       domain.ProductID `json:"id"`
	Size     string           `json:"size"`
	Quantity int              `json:"quantity"`
}

func (s *Server) apiCartAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrInvalidArgument, err.Error()))
		return
	}
	p, err := s.products.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := p.SelectSize(req.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess := s.session(w, r)
	if err := sess.cart.AddItem(r.Context(), *p, size, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(sess.cart.Snapshot()))
}

func (s *Server) apiCartIncrement(w http.ResponseWriter, r *http.Request) {
	s.lineOp(w, r, (*usecase.CartStore).Increment)
}

func (s *Server) apiCartDecrement(w http.ResponseWriter, r *http.Request) {
	s.lineOp(w, r, (*usecase.CartStore).Decrement)
}

func (s *Server) apiCartRemove(w http.ResponseWriter, r *http.Request) {
	s.lineOp(w, r, (*usecase.CartStore).RemoveItem)
}

type lineOpFunc func(*usecase.CartStore, context.Context, domain.ProductID, string) error

func (s *Server) lineOp(w http.ResponseWriter, r *http.Request, op lineOpFunc) {
	sess := s.session(w, r)
	id := domain.ProductID(strings.TrimSpace(mux.Vars(r)["id"]))
	if err := op(sess.cart, r.Context(), id, r.URL.Query().Get("size")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(sess.cart.Snapshot()))
}

// apiCartEvents streams the cart as server-sent events whenever it changes,
// including changes another view made to the same session.
func (s *Server) apiCartEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sess := s.session(w, r)
	s.holdStream(sess, 1)
	defer s.holdStream(sess, -1)

	updates := make(chan domain.Cart, 8)
	cancel := sess.cart.OnChange(func(c domain.Cart) {
		select {
		case updates <- c:
		default:
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(c domain.Cart) bool {
		b, err := json.Marshal(toCartView(c))
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", b); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(sess.cart.Snapshot()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case c := <-updates:
			if !send(c) {
				return
			}
		}
	}
}

// --- checkout ---

type receiptView struct {
	OrderID      string     `json:"orderId"`
	DeliveryDate string     `json:"deliveryDate"`
	OrderDate    string     `json:"orderDate"`
	Total        string     `json:"total"`
	Items        []lineView `json:"items"`
}

func toReceiptView(o domain.OrderReceipt) receiptView {
	return receiptView{
		OrderID:      o.OrderID,
		DeliveryDate: o.DeliveryLabel(),
		OrderDate:    o.OrderDate.Format("2006-01-02T15:04:05Z07:00"),
		Total:        domain.FormatPrice(o.Total),
		Items:        toCartView(domain.Cart{Lines: o.Items}).Lines,
	}
}

func (s *Server) apiCheckout(w http.ResponseWriter, r *http.Request) {
	var c domain.CustomerInfo
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrInvalidArgument, err.Error()))
		return
	}
	sess := s.session(w, r)
	o, err := s.checkout.PlaceOrder(r.Context(), sess.cart, sess.history, c)
	if err != nil && o == nil {
		writeError(w, r, err)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("order", o.OrderID).Msg("order placed but history not saved")
	}
	writeJSON(w, http.StatusCreated, toReceiptView(*o))
}

func (s *Server) apiOrders(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	list, err := sess.history.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]receiptView, 0, len(list))
	for _, o := range list {
		out = append(out, toReceiptView(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) apiOrdersExport(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	list, err := sess.history.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=orders.xlsx")
	if err := xlsx.WriteOrders(w, list); err != nil {
		log.Error().Err(err).Msg("export orders")
	}
}

// --- helpers ---

// session returns the view bound to the caller's cookie, creating both on
// first use.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	sid := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			sid = c.Value
		}
	}
	if sid == "" {
		sid = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			MaxAge:   int(s.ttl / time.Second),
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)
	if sess, ok := s.sessions[sid]; ok {
		sess.lastSeen = now
		return sess
	}
	// the view outlives this request until the session goes idle
	cart, history, stop := s.views(context.WithoutCancel(r.Context()), "sess:"+sid)
	sess := &session{cart: cart, history: history, stop: stop, lastSeen: now}
	s.sessions[sid] = sess
	return sess
}

// sweep closes sessions unused for longer than the ttl. It runs at most once
// a minute; s.mu must be held.
func (s *Server) sweep(now time.Time) {
	every := time.Minute
	if s.ttl < every {
		every = s.ttl
	}
	if now.Sub(s.lastSweep) < every {
		return
	}
	s.lastSweep = now
	for sid, sess := range s.sessions {
		if sess.streams > 0 || now.Sub(sess.lastSeen) <= s.ttl {
			continue
		}
		if sess.stop != nil {
			sess.stop()
		}
		delete(s.sessions, sid)
	}
	log.Debug().Int("sessions", len(s.sessions)).Msg("session sweep")
}

// holdStream keeps a session with an open event stream from being swept.
func (s *Server) holdStream(sess *session, delta int) {
	s.mu.Lock()
	sess.streams += delta
	sess.lastSeen = s.now()
	s.mu.Unlock()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCustomer),
		errors.Is(err, domain.ErrSizeRequired),
		errors.Is(err, domain.ErrUnknownSize),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("rid", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	} else if code == http.StatusBadGateway {
		log.Warn().Err(err).Str("rid", requestIDFrom(r.Context())).Msg("product api unavailable")
		msg = "could not load products"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
