package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/api"
	"github.com/metrofound/lostfound-api/api/scheduler"
	"github.com/metrofound/lostfound-api/config"
	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/notifications"
	"github.com/metrofound/lostfound-api/resolution"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Engine    *resolution.Engine
	Hub       *notifications.Hub
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	itemDB := databases.NewItemDatabase(a.dbHelper)
	claimDB := databases.NewClaimDatabase(a.dbHelper)
	threadDB := databases.NewThreadDatabase(a.dbHelper)
	notificationDB := databases.NewNotificationDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)

	a.Hub = notifications.NewHub()
	dispatcher := notifications.NewDispatcher(notificationDB, userDB, a.Hub, notifications.NewSendGridMailer())

	stores := resolution.MongoStores{ItemDB: itemDB, ClaimDB: claimDB, ThreadDB: threadDB}
	a.Engine = resolution.NewEngine(stores.Items(), stores.Claims(), stores.Threads(), dispatcher)

	a.Scheduler = scheduler.NewScheduler(a.Engine, itemDB, claimDB, notificationDB, dispatcher,
		databases.NewSchedulerLockDatabase(a.dbHelper))

	item := Item{Engine: a.Engine}
	claim := Claim{Engine: a.Engine}
	thread := Thread{Engine: a.Engine}
	u := User{DB: userDB}
	staff := Staff{
		SDB:    databases.NewStaffDatabase(a.dbHelper),
		RDB:    databases.NewStaffResetDatabase(a.dbHelper),
		Mailer: notifications.NewSendGridMailer(),
	}
	notification := Notification{DB: notificationDB}
	events := Events{Engine: a.Engine}
	media := Media{ItemDB: itemDB}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// realtime surfaces sit outside the token middleware; they authenticate
	// on their own query params
	r.HandleFunc("/ws/notifications", a.Hub.HandleWebSocket)
	r.HandleFunc("/ws/events", events.StreamHandler)
	r.HandleFunc("/ws/thread/{thread_id}", events.StreamHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/item", api.Middleware(http.HandlerFunc(item.ItemCreateHandler))).Methods("POST")
	apiCreate.Handle("/items", api.Middleware(http.HandlerFunc(item.ItemHandler))).Methods("GET")
	apiCreate.Handle("/items/user/{user_id}", api.Middleware(http.HandlerFunc(item.ItemsByUserIDHandler))).Methods("GET")
	apiCreate.Handle("/item/{item_id}", api.Middleware(http.HandlerFunc(item.ItemByIDHandler))).Methods("GET")
	apiCreate.Handle("/item/{item_id}", StaffAuthMiddleware(http.HandlerFunc(item.ItemDeleteHandler))).Methods("DELETE")
	apiCreate.Handle("/item/{item_id}/self-resolve", api.Middleware(http.HandlerFunc(item.ItemSelfResolveHandler))).Methods("POST")
	apiCreate.Handle("/item/{item_id}/match", StaffAuthMiddleware(http.HandlerFunc(item.ItemMarkMatchHandler))).Methods("POST")
	apiCreate.Handle("/item/{item_id}/photo", api.Middleware(http.HandlerFunc(media.ItemPhotoUploadHandler))).Methods("POST")

	apiCreate.Handle("/claim", api.Middleware(http.HandlerFunc(claim.ClaimCreateHandler))).Methods("POST")
	apiCreate.Handle("/claims", StaffAuthMiddleware(http.HandlerFunc(claim.ClaimHandler))).Methods("GET")
	apiCreate.Handle("/claims/user/{user_id}", api.Middleware(http.HandlerFunc(claim.ClaimsByUserIDHandler))).Methods("GET")
	apiCreate.Handle("/claim/{claim_id}", api.Middleware(http.HandlerFunc(claim.ClaimByIDHandler))).Methods("GET")
	apiCreate.Handle("/claim/{claim_id}/decision", StaffAuthMiddleware(http.HandlerFunc(claim.ClaimDecisionHandler))).Methods("PUT")
	apiCreate.Handle("/claim/{claim_id}/delivery/checkout", api.Middleware(http.HandlerFunc(claim.ClaimCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/success", http.HandlerFunc(claim.DeliverySuccessHandler)).Methods("GET")
	apiCreate.Handle("/cancel", http.HandlerFunc(claim.DeliveryCancelHandler)).Methods("GET")

	apiCreate.Handle("/thread", api.Middleware(http.HandlerFunc(thread.ThreadCreateHandler))).Methods("POST")
	apiCreate.Handle("/thread/{thread_id}", api.Middleware(http.HandlerFunc(thread.ThreadByIDHandler))).Methods("GET")
	apiCreate.Handle("/threads/user/{user_id}", api.Middleware(http.HandlerFunc(thread.ThreadsByUserIDHandler))).Methods("GET")
	apiCreate.Handle("/thread/{thread_id}/message", api.Middleware(http.HandlerFunc(thread.ThreadMessageHandler))).Methods("POST")
	apiCreate.Handle("/thread/{thread_id}/close", StaffAuthMiddleware(http.HandlerFunc(thread.ThreadCloseHandler))).Methods("PUT")

	apiCreate.Handle("/staff/login", http.HandlerFunc(staff.StaffLoginHandler)).Methods("POST")
	apiCreate.Handle("/staff/forgot-password", http.HandlerFunc(staff.StaffForgotPasswordHandler)).Methods("POST")
	apiCreate.Handle("/staff/reset-password", http.HandlerFunc(staff.StaffResetPasswordHandler)).Methods("POST")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(media.GenerateSignatureHandler))).Methods("POST")

	apiCreate.Handle("/notifications/user/{user_id}", api.Middleware(http.HandlerFunc(notification.NotificationsByUserIDHandler))).Methods("GET")
	apiCreate.Handle("/notification/{notification_id}/read", api.Middleware(http.HandlerFunc(notification.NotificationMarkReadHandler))).Methods("PATCH")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("lostfound-api has connected to the database")

	// the partial unique index on claims.itemId must exist before we serve
	// traffic; without it two racing claim creates can both land
	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()
	if err := databases.NewClaimDatabase(a.dbHelper).EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to ensure claim indexes")
		return err
	}

	// initialize stripe
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = stripeKey

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
