package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/innkeep/hotel-system/docs"
	"github.com/innkeep/hotel-system/internal/api/handler"
	"github.com/innkeep/hotel-system/internal/api/middleware"
	"github.com/innkeep/hotel-system/internal/core/domain"
)

// authRateLimit caps unauthenticated auth requests per client IP per second.
const authRateLimit = 10

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	Admin   *handler.AdminHandler
	Google  *handler.GoogleHandler // nil when Google sign-in is not configured
	Health  *handler.HealthHandler
}

// NewRouter builds and returns the Echo instance with all routes registered.
//
// @title                       Hotel Identity API
// @version                     1.0
// @description                 Account lifecycle, sessions, invitations and approvals.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func NewRouter(h Handlers, sessions middleware.SessionAuthenticator, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echoprometheus.NewMiddleware("hotel_identity"))

	// --- Public auth routes ---
	auth := e.Group("/auth", echomiddleware.RateLimiter(echomiddleware.NewRateLimiterMemoryStore(authRateLimit)))
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/verify-email", h.Auth.VerifyEmail)
	auth.POST("/resend-otp", h.Auth.ResendOTP)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password", h.Auth.ResetPassword)
	mountGoogle(auth, h.Google)
	auth.GET("/invitations/:token", h.Auth.CheckInvitation)
	auth.POST("/invitations/:token/redeem", h.Auth.RedeemInvitation)

	requireSession := middleware.Auth(sessions)

	// --- Caller's own account ---
	me := e.Group("/me", requireSession)
	me.GET("", h.Account.Me)
	me.DELETE("", h.Account.Delete)
	me.POST("/password", h.Account.ChangePassword)
	me.POST("/logout-all", h.Account.LogoutAll)

	// --- Admin ---
	admin := e.Group("/admin", requireSession, middleware.RBAC(domain.RoleAdmin))
	admin.GET("/users/pending", h.Admin.ListPending)
	admin.POST("/users", h.Admin.CreateUser)
	admin.POST("/users/:id/approve", h.Admin.Approve)
	admin.POST("/users/:id/deactivate", h.Admin.Deactivate)
	admin.POST("/users/:id/reactivate", h.Admin.Reactivate)
	admin.POST("/users/:id/force-reset", h.Admin.ForceReset)
	admin.DELETE("/users/:id", h.Admin.DeleteUser)
	admin.GET("/invitations", h.Admin.ListInvitations)
	admin.POST("/invitations", h.Admin.IssueInvitation)
	admin.PATCH("/invitations/:id", h.Admin.UpdateInvitation)
	admin.DELETE("/invitations/:id", h.Admin.DeleteInvitation)

	// --- Operational ---
	e.GET("/health", h.Health.Liveness)
	e.GET("/health/ready", h.Health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// mountGoogle registers the Google sign-in routes when the handler is present.
func mountGoogle(g *echo.Group, h *handler.GoogleHandler) {
	if h == nil {
		return
	}
	g.GET("/google", h.Start)
	g.GET("/google/callback", h.Callback)
}

// requestLogger writes one zerolog line per request. Query strings are left out
// because invitation and reset links carry bearer tokens.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogRoutePath: true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
