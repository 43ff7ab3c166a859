package directory

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"hearth/internal/domain"
)

// Server is a minimal in-memory prekey directory and message queue.
// Bundles are stored per address; each fetch hands out (and consumes)
// at most one one-time prekey. Envelopes queue per recipient until
// acked. All state is lost on process exit.
type Server struct {
	mu      sync.Mutex
	bundles map[domain.Address]domain.SignedPrekeyBundle
	queues  map[domain.Address][]domain.MessageEnvelope
}

// NewServer returns an empty directory.
func NewServer() *Server {
	return &Server{
		bundles: make(map[domain.Address]domain.SignedPrekeyBundle),
		queues:  make(map[domain.Address][]domain.MessageEnvelope),
	}
}

// ServeHTTP routes the directory API:
//
//	POST /v1/bundles                          publish a bundle
//	GET  /v1/bundles/{user}/{device}          fetch a bundle, consuming one OPK
//	POST /v1/messages/{user}/{device}         enqueue an envelope
//	GET  /v1/messages/{user}/{device}?limit=N peek queued envelopes
//	POST /v1/messages/{user}/{device}/ack     drop the first N envelopes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/bundles":
		s.register(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/bundles/"):
		s.fetch(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/messages/"):
		s.messages(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var b domain.SignedPrekeyBundle
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.bundles[b.Address] = b
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func parseAddr(user, device string) (domain.Address, bool) {
	n, err := strconv.ParseUint(device, 10, 32)
	if err != nil || user == "" {
		return domain.Address{}, false
	}
	return domain.Address{UserID: domain.UserID(user), DeviceID: domain.DeviceID(n)}, true
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/bundles/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	addr, ok := parseAddr(parts[0], parts[1])
	if !ok {
		http.Error(w, "bad address", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	b, ok := s.bundles[addr]
	if ok {
		// Hand out one one-time prekey and keep the rest.
		out := b
		if len(b.OneTimePrekeys) > 0 {
			out.OneTimePrekeys = b.OneTimePrekeys[:1]
			b.OneTimePrekeys = b.OneTimePrekeys[1:]
			s.bundles[addr] = b
		}
		b = out
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(b)
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/messages/")
	ack := false
	if strings.HasSuffix(rest, "/ack") {
		ack = true
		rest = strings.TrimSuffix(rest, "/ack")
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	addr, ok := parseAddr(parts[0], parts[1])
	if !ok {
		http.Error(w, "bad address", http.StatusBadRequest)
		return
	}

	switch {
	case ack && r.Method == http.MethodPost:
		s.ackMessages(w, r, addr)
	case !ack && r.Method == http.MethodPost:
		s.enqueue(w, r, addr)
	case !ack && r.Method == http.MethodGet:
		s.peek(w, r, addr)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, addr domain.Address) {
	defer r.Body.Close()
	var env domain.MessageEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	env = stampSentAt(env)
	s.mu.Lock()
	s.queues[addr] = append(s.queues[addr], env)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) peek(w http.ResponseWriter, r *http.Request, addr domain.Address) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	s.mu.Lock()
	q := s.queues[addr]
	if limit == 0 || limit > len(q) {
		limit = len(q)
	}
	out := make([]domain.MessageEnvelope, limit)
	copy(out, q[:limit])
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) ackMessages(w http.ResponseWriter, r *http.Request, addr domain.Address) {
	defer r.Body.Close()
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count < 0 {
		http.Error(w, "bad ack", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	q := s.queues[addr]
	if req.Count >= len(q) {
		delete(s.queues, addr)
	} else {
		s.queues[addr] = q[req.Count:]
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
