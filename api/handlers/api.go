package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/approval"
	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/mailer"
	"github.com/placement-cell/placement-portal-api/models"
	"github.com/placement-cell/placement-portal-api/otp"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Hub      *Hub
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewRepresentativeDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	mail := mailer.NewSendGrid(a.Config.SendgridAPIKey, a.Config.MailFromAddress, a.Config.MailFromName)
	engine := otp.NewEngine(databases.NewOtpChallengeDatabase(a.dbHelper), mail)
	tokens := approval.NewTokenService([]byte(a.Config.TokenSecret))

	prdb := databases.NewPendingRegistrationDatabase(a.dbHelper)
	sdb := databases.NewStudentDatabase(a.dbHelper)
	rdb := databases.NewRepresentativeDatabase(a.dbHelper)

	notifier := approval.NewNotifier(mail, rdb, a.Config.BaseURL)
	resolver := approval.NewResolver(tokens, prdb, sdb, notifier)

	if a.Hub == nil {
		a.Hub = NewHub()
	}

	o := Otp{Engine: engine}
	reg := Registration{
		Engine: engine, Tokens: tokens,
		PRDB: prdb, SDB: sdb, RDB: rdb,
		Mail: mail, Hub: a.Hub, BaseURL: a.Config.BaseURL,
	}
	appr := Approval{Resolver: resolver, Hub: a.Hub}
	stu := Student{DB: sdb, Engine: engine}
	rep := Representative{DB: rdb}
	dep := &Department{DB: databases.NewDepartmentDatabase(a.dbHelper)}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// Events stay on the root router; the request timeout does not apply to
	// long-lived connections.
	r.HandleFunc("/ws/registrations", a.Hub.ServeWS)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	// Code issuance and redemption sit behind a per-IP limiter.
	limiter := api.NewRateLimiter(rate.Every(time.Second), 5)

	apiCreate.Handle("/auth/request-code", limiter.Limit(http.HandlerFunc(o.RequestCodeHandler))).Methods("POST")
	apiCreate.Handle("/auth/verify-code", limiter.Limit(http.HandlerFunc(o.VerifyCodeHandler))).Methods("POST")
	apiCreate.Handle("/auth/reset-password", limiter.Limit(http.HandlerFunc(stu.ResetPasswordHandler))).Methods("POST")

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/registrations", limiter.Limit(http.HandlerFunc(reg.CreateRegistrationHandler))).Methods("POST")
	apiCreate.Handle("/registrations/resolve", http.HandlerFunc(appr.ResolveRegistrationHandler)).Methods("GET", "POST")
	apiCreate.Handle("/registrations/status", http.HandlerFunc(appr.RegistrationStatusHandler)).Methods("GET")

	apiCreate.Handle("/student/{student_id}", api.Middleware(http.HandlerFunc(stu.StudentByIDHandler))).Methods("GET")
	apiCreate.Handle("/student/{student_id}", api.Middleware(http.HandlerFunc(stu.UpdateStudentByIDHandler))).Methods("PUT")
	apiCreate.Handle("/students", api.Middleware(http.HandlerFunc(stu.StudentsHandler))).Methods("GET")
	apiCreate.Handle("/students/{student_id}/change-email", limiter.Limit(http.HandlerFunc(stu.ChangeEmailHandler))).Methods("POST")
	apiCreate.Handle("/students/{student_id}/change-phone", limiter.Limit(http.HandlerFunc(stu.ChangePhoneHandler))).Methods("POST")

	apiCreate.Handle("/representatives", api.Middleware(http.HandlerFunc(rep.CreateRepresentativeHandler))).Methods("POST")
	apiCreate.Handle("/representatives", api.Middleware(http.HandlerFunc(rep.RepresentativesHandler))).Methods("GET")
	apiCreate.Handle("/representatives/{representative_id}", api.Middleware(http.HandlerFunc(rep.DeactivateRepresentativeHandler))).Methods("DELETE")

	apiCreate.Handle("/departments", http.HandlerFunc(dep.DepartmentsHandler)).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

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
	zap.S().Info("placement-portal-api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil

}

// DatabaseHelper exposes the connected database handle for collaborators
// created outside the router, like the scheduler.
func (a *App) DatabaseHelper() databases.DatabaseHelper {
	return a.dbHelper
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
