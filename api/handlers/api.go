package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/api"
	"github.com/consulthub/consulthub-api/auth"
	"github.com/consulthub/consulthub-api/chat"
	"github.com/consulthub/consulthub-api/config"
	"github.com/consulthub/consulthub-api/databases"
	"github.com/consulthub/consulthub-api/models"
)

// healthPingTimeout bounds the database ping of the health check
const healthPingTimeout = 2 * time.Second

// App stores the router, the chat gateway and its backing stores, so they can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Gateway  *chat.Gateway
	Presence databases.PresenceStore
	Verifier *auth.TokenVerifier

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.RequestMiddleware)

	c := Chat{Gateway: a.Gateway, Presence: a.Presence}

	// healthchex
	r.HandleFunc("/health", a.healthCheckHandler)

	// the websocket route must not sit behind the timeout middleware, it
	// needs the original writer to hijack the connection
	r.HandleFunc(a.Config.ChatPath, a.Gateway.ServeWS).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.Middleware(a.Verifier))
	apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	apiCreate.HandleFunc("/chat/stats", c.StatsHandler).Methods("GET")
	apiCreate.HandleFunc("/chat/rooms/{roomId}/members", c.RoomMembersHandler).Methods("GET")
	apiCreate.HandleFunc("/chat/consultations/{consultationId}/room", c.ConsultationRoomHandler).Methods("GET")
	apiCreate.HandleFunc("/chat/presence/{userId}", c.PresenceHandler).Methods("GET")

	return r
}

// Initialize is invoked by the serve command to connect the stores, build the
// gateway and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	connectCtx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	if err = client.Connect(connectCtx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	zap.S().Info("consulthub-api has connected to the database")

	a.Presence, err = databases.NewPresenceStore(ctx, &a.Config)
	if err != nil {
		zap.S().With(err).Error("failed to connect to redis")
		return err
	}
	if _, ok := a.Presence.(databases.NoopPresence); ok {
		zap.S().Info("REDIS_ADDR not set, presence stays in process")
	}

	a.Verifier = auth.NewTokenVerifier(a.Config.JWTSecret)
	authn := auth.NewAuthenticator(a.Verifier, auth.NewMongoProfiles(databases.NewUserDatabase(a.dbHelper)))
	a.Gateway = chat.NewGateway(authn, a.Presence, chat.OptionsFromConfig(&a.Config))

	// initialize api router
	a.initializeRoutes()
	return nil
}

// Close releases the database and presence connections
func (a *App) Close(ctx context.Context) {
	if a.Presence != nil {
		if err := a.Presence.Close(); err != nil {
			zap.S().With(err).Warn("failed to close presence store")
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().With(err).Warn("failed to disconnect from database")
		}
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// healthCheckHandler reports liveness, and pings the database when one is connected
func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthCheckResponse{Alive: true}
	status := http.StatusOK
	if a.dbHelper != nil {
		ctx, cancel := api.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := a.dbHelper.Client().Ping(ctx); err != nil {
			zap.S().With(err).Warn("database ping failed")
			resp.Database = "down"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(resp)
	_, _ = io.WriteString(w, string(b))
}
