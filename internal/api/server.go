// Package api binds the domain services to a minimal JSON-over-HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/shifts"
)

// Server carries the wired services behind the HTTP handlers.
type Server struct {
	cfg        *config.Config
	auth       *service.AuthService
	schedules  *service.ScheduleService
	shifts     *shifts.Service
	bookings   *service.BookingService
	recurring  *service.RecurringService
	reports    *service.ReportService
	broadcasts *service.BroadcastService
	push       *service.PushService
	users      *service.UserService
	logger     zerolog.Logger
}

// Deps bundles the constructor arguments for Server.
type Deps struct {
	Config     *config.Config
	Auth       *service.AuthService
	Schedules  *service.ScheduleService
	Shifts     *shifts.Service
	Bookings   *service.BookingService
	Recurring  *service.RecurringService
	Reports    *service.ReportService
	Broadcasts *service.BroadcastService
	Push       *service.PushService
	Users      *service.UserService
}

func NewServer(deps Deps) *Server {
	return &Server{
		cfg:        deps.Config,
		auth:       deps.Auth,
		schedules:  deps.Schedules,
		shifts:     deps.Shifts,
		bookings:   deps.Bookings,
		recurring:  deps.Recurring,
		reports:    deps.Reports,
		broadcasts: deps.Broadcasts,
		push:       deps.Push,
		users:      deps.Users,
		logger:     logging.WithComponent("api"),
	}
}

// Router assembles the route tree with the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealth)

	// Public surface. Auth endpoints are rate limited by client IP to slow
	// OTP brute force.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, 1*time.Minute))
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/verify", s.handleVerify)
		if s.cfg.DevMode {
			r.Post("/auth/dev-login", s.handleDevLogin)
		}
	})
	r.Get("/schedules", s.handleListSchedules)
	r.Get("/shifts/available", s.handleListAvailableShifts)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/bookings", s.handleCreateBooking)
		r.Get("/bookings/my", s.handleMyBookings)
		r.Post("/bookings/{id}/checkin", s.handleCheckIn)
		r.Post("/bookings/{id}/attendance", s.handleAttendance)
		r.Delete("/bookings/{id}", s.handleCancelBooking)
		r.Post("/bookings/{id}/report", s.handleShiftReport)
		r.Post("/reports/off-shift", s.handleOffShiftReport)

		r.Post("/push/subscribe", s.handlePushSubscribe)
		r.Delete("/push/subscribe", s.handlePushUnsubscribe)
		r.Get("/push/vapid-public-key", s.handleVAPIDPublicKey)
	})

	// Admin surface.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.authenticate, s.requireAdmin)

		r.Get("/schedules", s.handleAdminListSchedules)
		r.Post("/schedules", s.handleAdminCreateSchedule)
		r.Get("/schedules/{id}", s.handleAdminGetSchedule)
		r.Put("/schedules/{id}", s.handleAdminUpdateSchedule)
		r.Delete("/schedules/{id}", s.handleAdminDeleteSchedule)
		r.Post("/schedules/preview", s.handleAdminPreviewSchedule)

		r.Get("/shifts", s.handleAdminListShifts)
		r.Post("/bookings/assign", s.handleAdminAssignShift)
		r.Post("/bookings/unassign", s.handleAdminUnassignShift)

		r.Get("/users", s.handleAdminListUsers)
		r.Post("/users", s.handleAdminCreateUser)
		r.Get("/users/{id}", s.handleAdminGetUser)
		r.Put("/users/{id}", s.handleAdminUpdateUser)
		r.Delete("/users/{id}", s.handleAdminDeleteUser)

		r.Get("/recurring-assignments", s.handleAdminListAssignments)
		r.Post("/recurring-assignments", s.handleAdminCreateAssignment)
		r.Get("/recurring-assignments/{id}", s.handleAdminGetAssignment)
		r.Put("/recurring-assignments/{id}", s.handleAdminUpdateAssignment)
		r.Delete("/recurring-assignments/{id}", s.handleAdminDeleteAssignment)

		r.Get("/reports", s.handleAdminListReports)
		r.Get("/reports/stats", s.handleAdminReportStats)
		r.Get("/reports/{id}", s.handleAdminGetReport)
		r.Post("/reports/{id}/archive", s.handleAdminArchiveReport)
		r.Post("/reports/{id}/unarchive", s.handleAdminUnarchiveReport)

		r.Get("/broadcasts", s.handleAdminListBroadcasts)
		r.Post("/broadcasts", s.handleAdminCreateBroadcast)
		r.Get("/broadcasts/{id}", s.handleAdminGetBroadcast)

		r.Get("/dashboard", s.handleAdminDashboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
