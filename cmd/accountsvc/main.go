// Command accountsvc is the persistence-facing companion service the game
// server's internal/account.Client connects out to (spec §4.10). It is a
// separate binary/process so the hot tick loop never blocks on disk or a
// database: one long-lived WebSocket carries the four outbound message
// kinds from the server and the three inbound kinds back, while a
// gorilla/mux control surface exposes an operator-facing force-kick
// endpoint and health check, and a chi-routed webhook lets an external
// identity provider push alias assignments in, mirroring the teacher's
// /api/kick-style webhook-to-internal-event pattern generalized from Kick
// OAuth callbacks to a generic identity push.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fight-club/internal/account"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// store is the sidecar's in-memory persistence layer. A production
// deployment would back this with a real database; the shape (blob +
// alias per client id) is all internal/account's protocol needs.
type store struct {
	mu      sync.RWMutex
	blobs   map[string]json.RawMessage
	aliases map[string]string
}

func newStore() *store {
	return &store{
		blobs:   make(map[string]json.RawMessage),
		aliases: make(map[string]string),
	}
}

func (s *store) get(clientID string) (json.RawMessage, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blobs[clientID], s.aliases[clientID]
}

func (s *store) persist(clientID string, blob json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[clientID] = blob
}

func (s *store) setAlias(clientID, alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[clientID] = alias
}

// gameConn holds the single live connection back to the game server, used
// to push inbound envelopes (alias_set, initial_blob, force_kick)
// asynchronously from the control-surface handlers.
type gameConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (g *gameConn) set(c *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = c
}

func (g *gameConn) send(kind account.MessageKind, payload interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return g.conn.WriteJSON(account.Envelope{Kind: kind, Payload: raw})
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	db := newStore()
	conn := &gameConn{}

	secret := os.Getenv("ACCOUNT_SIDECAR_SECRET")
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("no ACCOUNT_SIDECAR_SECRET set, generated one for this run", zap.String("secret", secret))
	}

	gameMux := http.NewServeMux()
	gameMux.HandleFunc("/api/"+secret, func(w http.ResponseWriter, r *http.Request) {
		handleGameSocket(w, r, logger, db, conn)
	})

	wsAddr := ":8081"
	go func() {
		logger.Info("account sidecar websocket listening", zap.String("addr", wsAddr))
		if err := http.ListenAndServe(wsAddr, gameMux); err != nil {
			logger.Fatal("websocket listener failed", zap.Error(err))
		}
	}()

	controlAddr := ":8082"
	go func() {
		logger.Info("account sidecar control surface listening", zap.String("addr", controlAddr))
		if err := http.ListenAndServe(controlAddr, controlRouter(logger, conn)); err != nil {
			logger.Fatal("control surface listener failed", zap.Error(err))
		}
	}()

	webhookAddr := ":8083"
	go func() {
		logger.Info("account sidecar identity webhook listening", zap.String("addr", webhookAddr))
		if err := http.ListenAndServe(webhookAddr, webhookRouter(logger, db, conn)); err != nil {
			logger.Fatal("webhook listener failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("account sidecar shutting down")
}

// controlRouter builds the operator-facing control surface: force-kick and
// health, on a dedicated gorilla/mux instance distinct from the identity
// webhook's chi router.
func controlRouter(logger *zap.Logger, conn *gameConn) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/force-kick", func(w http.ResponseWriter, r *http.Request) {
		var payload account.ForceKickPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := conn.send(account.KindForceKick, payload); err != nil {
			logger.Error("force-kick push failed", zap.Error(err))
			http.Error(w, "push failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)

	return r
}

// webhookRouter exposes the identity-provider push endpoint, generalizing
// the teacher's /api/kick webhook-to-internal-event pattern: an external
// service posts an alias assignment, we persist it and forward it live if
// the game server is connected.
func webhookRouter(logger *zap.Logger, db *store, conn *gameConn) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Post("/webhook/identity", func(w http.ResponseWriter, r *http.Request) {
		var payload account.AliasSetPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		db.setAlias(payload.ClientID, payload.Alias)
		if err := conn.send(account.KindAliasSet, payload); err != nil {
			logger.Warn("alias push failed, will apply on next login", zap.Error(err))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// handleGameSocket serves the single long-lived connection from
// internal/account.Client, decoding the four outbound kinds and replying
// with initial_blob on login_ready.
func handleGameSocket(w http.ResponseWriter, r *http.Request, logger *zap.Logger, db *store, conn *gameConn) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("upgrade failed", zap.Error(err))
		return
	}
	defer c.Close()

	conn.set(c)
	logger.Info("game server connected")
	defer conn.set(nil)

	for {
		var env account.Envelope
		if err := c.ReadJSON(&env); err != nil {
			logger.Info("game server disconnected", zap.Error(err))
			return
		}

		switch env.Kind {
		case account.KindLoginReady:
			var payload account.LoginReadyPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				continue
			}
			blob, alias := db.get(payload.ClientID)
			if alias != "" {
				conn.send(account.KindAliasSet, account.AliasSetPayload{ClientID: payload.ClientID, Alias: alias})
			}
			if blob != nil {
				conn.send(account.KindInitialBlob, account.InitialBlobPayload{ClientID: payload.ClientID, Blob: blob})
			}

		case account.KindPersist:
			var payload account.PersistPayload
			if err := json.Unmarshal(env.Payload, &payload); err == nil {
				db.persist(payload.ClientID, payload.Blob)
			}

		case account.KindLogout:
			var payload account.LogoutPayload
			json.Unmarshal(env.Payload, &payload)
			logger.Info("client logged out", zap.String("client_id", payload.ClientID))

		case account.KindCraftResult:
			var payload account.CraftResultPayload
			json.Unmarshal(env.Payload, &payload)
			logger.Info("craft result",
				zap.String("client_id", payload.ClientID),
				zap.Int("petal_id", payload.PetalID),
				zap.Bool("success", payload.Success))
		}
	}
}
