package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
	"cloakchat/internal/relay"
)

// Config carries the relay server's runtime options.
type Config struct {
	// JWTSecret verifies connection tokens minted by the auth collaborator.
	JWTSecret []byte
	// RegistryTTL evicts peer keys not re-announced in time; zero means
	// DefaultRegistryTTL.
	RegistryTTL time.Duration
}

type mediaItem struct {
	id        string
	creatorID string
	mediaType string
	masterURL string
	createdAt time.Time
	hops      []domain.ProvenanceHop
}

// Server is the in-memory relay. All state is process-scoped: inboxes,
// message history, media records and the key registry are lost on
// restart, which the client contract already assumes for the registry.
type Server struct {
	cfg  Config
	log  logging.Logger
	keys *keyRegistry

	mu       sync.Mutex
	inboxes  map[string][]domain.Event
	messages map[string][]domain.Message // keyed by pair, time-appended
	media    map[string]*mediaItem
}

// New returns a relay server ready to be mounted as an http.Handler.
func New(cfg Config, log logging.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		keys:     newKeyRegistry(cfg.RegistryTTL),
		inboxes:  make(map[string][]domain.Event),
		messages: make(map[string][]domain.Message),
		media:    make(map[string]*mediaItem),
	}
}

// Handler returns the routed HTTP surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /announce", s.authed(s.handleAnnounce))
	mux.HandleFunc("POST /keys/request", s.authed(s.handleKeyRequest))
	mux.HandleFunc("POST /messages", s.authed(s.handleSendMessage))
	mux.HandleFunc("POST /media", s.authed(s.handleRegisterMedia))
	mux.HandleFunc("POST /media/share", s.authed(s.handleShareMedia))
	mux.HandleFunc("GET /events", s.authed(s.handleFetchEvents))
	mux.HandleFunc("POST /events/ack", s.authed(s.handleAckEvents))
	mux.HandleFunc("GET /history/{peer}", s.authed(s.handleHistory))
	mux.HandleFunc("GET /media/{id}/provenance", s.authed(s.handleProvenance))
	return mux
}

type authedHandler func(userID string, w http.ResponseWriter, r *http.Request)

// authed verifies the bearer token and resolves the connected user id.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		userID, err := relay.UserIDFromToken(raw, s.cfg.JWTSecret)
		if err != nil {
			s.log.Warn(r.Context(), "token rejected", "err", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		h(userID, w, r)
	}
}

func (s *Server) handleAnnounce(userID string, w http.ResponseWriter, r *http.Request) {
	var req domain.AnnounceRequest
	if err := decode(r, &req); err != nil || req.PublicKey == "" {
		http.Error(w, "bad announce payload", http.StatusBadRequest)
		return
	}
	s.keys.put(userID, req.PublicKey)

	// Broadcast the fresh key to every other known inbox, mirroring the
	// connect-time broadcast; peers without an inbox yet will request it
	// on demand.
	ev := domain.Event{Type: domain.EventPeerKey, PeerKey: &domain.PeerKeyEvent{
		PeerID: userID, PublicKey: req.PublicKey,
	}}
	s.mu.Lock()
	for user := range s.inboxes {
		if user != userID {
			s.inboxes[user] = append(s.inboxes[user], ev)
		}
	}
	// Ensure the announcer has an inbox from now on.
	if _, ok := s.inboxes[userID]; !ok {
		s.inboxes[userID] = nil
	}
	s.mu.Unlock()

	s.log.Debug(r.Context(), "public key announced", "user", userID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleKeyRequest(userID string, w http.ResponseWriter, r *http.Request) {
	var req domain.KeyRequest
	if err := decode(r, &req); err != nil || req.PeerID == "" {
		http.Error(w, "bad key request", http.StatusBadRequest)
		return
	}
	pub, ok := s.keys.get(req.PeerID)
	if !ok {
		// The peer has not announced (or the key expired). No event is
		// produced; the requester's await will time out.
		s.log.Debug(r.Context(), "peer key not registered", "peer", req.PeerID, "requester", userID)
		w.WriteHeader(http.StatusOK)
		return
	}
	s.enqueue(userID, domain.Event{Type: domain.EventPeerKey, PeerKey: &domain.PeerKeyEvent{
		PeerID: req.PeerID, PublicKey: pub,
	}})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSendMessage(userID string, w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if err := decode(r, &req); err != nil || req.ReceiverID == "" || req.Ciphertext == "" {
		http.Error(w, "bad send payload", http.StatusBadRequest)
		return
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Kind:       domain.KindText,
		Ciphertext: req.Ciphertext,
		Timestamp:  time.Now().UTC(),
	}
	s.appendMessage(msg)

	s.enqueue(req.ReceiverID, domain.Event{Type: domain.EventMessage, Message: &domain.MessageEvent{
		MessageID:  msg.ID,
		Ciphertext: msg.Ciphertext,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Timestamp:  msg.Timestamp,
	}})
	s.enqueue(userID, domain.Event{Type: domain.EventMessageSent, MessageSent: &domain.MessageSentEvent{
		MessageID:     msg.ID,
		ReceiverID:    msg.ReceiverID,
		CorrelationID: req.CorrelationID,
		Timestamp:     msg.Timestamp,
	}})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRegisterMedia(userID string, w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterMediaRequest
	if err := decode(r, &req); err != nil || req.MediaType == "" {
		http.Error(w, "bad media payload", http.StatusBadRequest)
		return
	}

	item := &mediaItem{
		id:        uuid.NewString(),
		creatorID: userID,
		mediaType: req.MediaType,
		masterURL: req.MasterURL,
		createdAt: time.Now().UTC(),
	}
	if item.masterURL == "" {
		item.masterURL = "/media/master/" + item.id
	}
	s.mu.Lock()
	s.media[item.id] = item
	s.mu.Unlock()

	writeJSON(w, struct {
		MediaID string `json:"mediaId"`
	}{MediaID: item.id})
}

func (s *Server) handleShareMedia(userID string, w http.ResponseWriter, r *http.Request) {
	var req domain.ShareRequest
	if err := decode(r, &req); err != nil || req.MediaID == "" || req.ReceiverID == "" {
		http.Error(w, "bad share payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	item, ok := s.media[req.MediaID]
	if ok {
		item.hops = append(item.hops, domain.ProvenanceHop{
			RecipientID: req.ReceiverID,
			FromUserID:  userID,
			SharedAt:    time.Now().UTC(),
		})
	}
	s.mu.Unlock()
	if !ok {
		s.enqueue(userID, domain.Event{Type: domain.EventError, Error: &domain.ErrorEvent{
			Error: fmt.Sprintf("media %s not found", req.MediaID),
		}})
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Kind:       domain.KindMedia,
		Media: &domain.MediaRef{
			MediaID:   item.id,
			URL:       item.masterURL,
			MediaType: item.mediaType,
		},
		Timestamp: time.Now().UTC(),
	}
	s.appendMessage(msg)

	s.enqueue(req.ReceiverID, domain.Event{Type: domain.EventMedia, Media: &domain.MediaEvent{
		URL:        msg.Media.URL,
		MediaType:  msg.Media.MediaType,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		MessageID:  msg.ID,
		MediaID:    item.id,
		Timestamp:  msg.Timestamp,
	}})
	s.enqueue(userID, domain.Event{Type: domain.EventMediaSent, MediaSent: &domain.MediaSentEvent{
		MessageID:     msg.ID,
		ReceiverID:    msg.ReceiverID,
		MediaID:       item.id,
		MasterURL:     item.masterURL,
		CorrelationID: req.CorrelationID,
		Timestamp:     msg.Timestamp,
	}})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFetchEvents(userID string, w http.ResponseWriter, r *http.Request) {
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
	inbox := s.inboxes[userID]
	if limit > 0 && limit < len(inbox) {
		inbox = inbox[:limit]
	}
	out := make([]domain.Event, len(inbox))
	copy(out, inbox)
	if _, ok := s.inboxes[userID]; !ok {
		s.inboxes[userID] = nil // first contact creates the inbox
	}
	s.mu.Unlock()

	writeJSON(w, out)
}

func (s *Server) handleAckEvents(userID string, w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := decode(r, &req); err != nil || req.Count < 0 {
		http.Error(w, "bad ack payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	inbox := s.inboxes[userID]
	if req.Count >= len(inbox) {
		s.inboxes[userID] = nil
	} else {
		s.inboxes[userID] = inbox[req.Count:]
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHistory(userID string, w http.ResponseWriter, r *http.Request) {
	peer := r.PathValue("peer")
	if peer == "" {
		http.Error(w, "missing peer", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	stored := s.messages[pairKey(userID, peer)]
	out := make([]domain.Message, len(stored))
	copy(out, stored)
	s.mu.Unlock()

	// Append order already tracks time, but redeliveries make this cheap
	// to guarantee explicitly.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	writeJSON(w, out)
}

func (s *Server) handleProvenance(userID string, w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	item, ok := s.media[id]
	var p domain.Provenance
	if ok {
		p = domain.Provenance{
			MediaID:   item.id,
			CreatorID: item.creatorID,
			MediaType: item.mediaType,
			MasterURL: item.masterURL,
			Hops:      append([]domain.ProvenanceHop(nil), item.hops...),
		}
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (s *Server) enqueue(userID string, ev domain.Event) {
	s.mu.Lock()
	s.inboxes[userID] = append(s.inboxes[userID], ev)
	s.mu.Unlock()
}

func (s *Server) appendMessage(msg domain.Message) {
	key := pairKey(msg.SenderID, msg.ReceiverID)
	s.mu.Lock()
	s.messages[key] = append(s.messages[key], msg)
	s.mu.Unlock()
}

// pairKey is symmetric: both directions of a conversation share history.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
