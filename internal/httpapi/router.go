package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bandspace/internal/api"
	"bandspace/internal/auth"
	"bandspace/internal/band"
	"bandspace/internal/booking"
	"bandspace/internal/item"
	"bandspace/internal/loan"
	"bandspace/internal/metrics"
	"bandspace/internal/notification"
	"bandspace/internal/scheduler"
	"bandspace/internal/venue"
	"bandspace/pkg/config"
)

type Dependencies struct {
	Cfg config.Config
	DB  *pgxpool.Pool
	Log zerolog.Logger

	// Redis and Publisher are optional.
	Redis     *redis.Client
	Publisher notification.Publisher
}

// Services holds the wired domain layer shared by the router and the
// scheduler.
type Services struct {
	Location *time.Location

	Users         *auth.Users
	Revocations   *auth.Revocations
	Venues        *venue.Repository
	Bands         *band.Repository
	Items         *item.Repository
	Loans         *loan.Repository
	LoanService   *loan.Service
	Bookings      *booking.Repository
	Engine        *booking.Engine
	Queries       *booking.Queries
	Notifications *notification.Repository
	Badge         *notification.Badge
	Notifier      *notification.Service
}

func NewServices(deps Dependencies) (*Services, error) {
	loc, err := time.LoadLocation(deps.Cfg.Scheduler.Location)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Location:      loc,
		Users:         auth.NewUsers(deps.DB),
		Revocations:   auth.NewRevocations(deps.Redis),
		Venues:        venue.NewRepository(deps.DB),
		Bands:         band.NewRepository(deps.DB),
		Items:         item.NewRepository(deps.DB),
		Loans:         loan.NewRepository(deps.DB),
		Bookings:      booking.NewRepository(deps.DB),
		Notifications: notification.NewRepository(deps.DB),
		Badge:         notification.NewBadge(deps.Redis),
	}
	s.Notifier = notification.NewService(s.Notifications, s.Badge, deps.Publisher, deps.Log.With().Str("component", "notification").Logger())
	s.LoanService = loan.NewService(deps.DB, s.Loans, s.Notifier, deps.Log.With().Str("component", "loan").Logger())
	s.Engine = booking.NewEngine(s.Bookings, s.Venues, s.Notifier, deps.Log.With().Str("component", "booking").Logger())
	s.Queries = booking.NewQueries(s.Bookings)
	return s, nil
}

// Jobs returns the scheduler jobs bound to these services.
func (s *Services) Jobs() []scheduler.Job {
	return scheduler.Jobs(scheduler.Deps{
		Bookings: s.Bookings,
		Bands:    s.Bands,
		Loans:    s.LoanService,
		Venues:   s.Venues,
		Notify:   s.Notifier,
	})
}

func NewRouter(deps Dependencies, svc *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(api.CORSMiddleware(api.CORSOptions{
		AllowedOrigins: deps.Cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAgeSeconds:  600,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	authHandlers := auth.Handlers{Cfg: deps.Cfg.Auth, Users: svc.Users, Revocations: svc.Revocations}
	venueHandlers := venue.Handlers{DB: deps.DB, Venues: svc.Venues, Notify: svc.Notifier}
	bandHandlers := band.Handlers{DB: deps.DB, Bands: svc.Bands, Notify: svc.Notifier}
	itemHandlers := item.Handlers{DB: deps.DB, Items: svc.Items}
	loanHandlers := loan.Handlers{Service: svc.LoanService, Loans: svc.Loans}
	bookingHandlers := booking.Handlers{Engine: svc.Engine, Queries: svc.Queries, Location: svc.Location}
	notificationHandlers := notification.Handlers{Repo: svc.Notifications, Badge: svc.Badge}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandlers.Register)
		r.Post("/auth/login", authHandlers.Login)

		r.Group(func(r chi.Router) {
			r.Use(api.RequireSession(deps.Cfg.Auth.JWTSecret, svc.Revocations))

			r.Get("/auth/me", authHandlers.Me)
			r.Post("/auth/logout", authHandlers.Logout)

			r.Post("/venues", venueHandlers.Create)
			r.Get("/venues", venueHandlers.List)
			r.Get("/venues/{id}", venueHandlers.Get)
			r.Put("/venues/{id}", venueHandlers.Update)
			r.Delete("/venues/{id}", venueHandlers.Delete)
			r.Get("/venues/{id}/members", venueHandlers.Members)
			r.Post("/venues/{id}/members/{userId}", venueHandlers.AddMember)
			r.Delete("/venues/{id}/members/{userId}", venueHandlers.RemoveMember)
			r.Get("/venues/{id}/audit", venueHandlers.AuditLog)
			r.Post("/venues/{id}/invitations", venueHandlers.Invite)
			r.Get("/venues/{id}/invitations", venueHandlers.VenueInvitations)
			r.Put("/invitations/{id}/accept", venueHandlers.AcceptInvitation)
			r.Put("/invitations/{id}/decline", venueHandlers.DeclineInvitation)

			r.Post("/bands", bandHandlers.Create)
			r.Get("/bands", bandHandlers.List)
			r.Get("/bands/{id}", bandHandlers.Get)
			r.Put("/bands/{id}", bandHandlers.Update)
			r.Delete("/bands/{id}", bandHandlers.Delete)
			r.Post("/bands/{id}/join", bandHandlers.Join)
			r.Post("/bands/{id}/members/{userId}", bandHandlers.AddMember)
			r.Delete("/bands/{id}/members/{userId}", bandHandlers.RemoveMember)

			r.Post("/items", itemHandlers.Create)
			r.Get("/items", itemHandlers.List)
			r.Get("/items/{id}", itemHandlers.Get)
			r.Put("/items/{id}", itemHandlers.Update)
			r.Delete("/items/{id}", itemHandlers.Delete)

			r.Post("/loans", loanHandlers.Create)
			r.Get("/loans", loanHandlers.List)
			r.Get("/loans/overdue", loanHandlers.Overdue)
			r.Post("/loans/overdue/refresh", loanHandlers.RefreshOverdue)
			r.Get("/loans/{id}", loanHandlers.Get)
			r.Put("/loans/{id}/return", loanHandlers.Return)

			r.Post("/bookings", bookingHandlers.Create)
			r.Get("/bookings/{id}", bookingHandlers.Get)
			r.Put("/bookings/{id}", bookingHandlers.Update)
			r.Delete("/bookings/{id}", bookingHandlers.Cancel)
			r.Get("/bookings/{id}/approvals", bookingHandlers.Approvals)
			r.Get("/bookings/{id}/events", bookingHandlers.Timeline)
			r.Put("/approvals/{id}", bookingHandlers.Respond)

			r.Route("/users/{userId}", func(r chi.Router) {
				r.Get("/approvals/pending", bookingHandlers.PendingForUser)
				r.Get("/bookings", bookingHandlers.SharedForUser)
				r.Get("/calendar", bookingHandlers.CalendarForUser)
				r.Get("/bands", bandHandlers.ListForUser)
				r.Get("/items", itemHandlers.ListForUser)
				r.Get("/invitations", venueHandlers.InvitationsForUser)
			})

			r.Get("/notifications", notificationHandlers.List)
			r.Get("/notifications/badge", notificationHandlers.BadgeCount)
			r.Put("/notifications/read-all", notificationHandlers.MarkAllRead)
			r.Put("/notifications/{id}/read", notificationHandlers.MarkRead)
		})
	})

	return r
}
