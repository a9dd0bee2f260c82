package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/golf-intranet/internal/handler"
	"github.com/iliyamo/golf-intranet/internal/middleware"
)

// Handlers groups every handler mounted by Register.
type Handlers struct {
	Auth        *handler.AuthHandler
	CourseTimes *handler.CourseTimeHandler
	JoinPersons *handler.JoinPersonHandler
	Admin       *handler.AdminHandler
	BlackList   *handler.BlackListHandler
	Performance *handler.PerformanceHandler
	Ready       echo.HandlerFunc
}

// Options carries the shared middleware.  RateLimit and Cache may be nil.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     *middleware.ResponseCache
}

// Cache scopes of the read-mostly lookup tables.
const (
	scopeGolfClubs = "golf_clubs"
	scopeCourses   = "courses"
	scopeSiteIDs   = "site_ids"
)

// Register mounts the probes at the root and the API under /v1.  Login
// and refresh are public; everything else requires a token, and /v1/admin
// requires the ADMIN role.
func Register(e *echo.Echo, h Handlers, o Options) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready)
	}

	v1 := e.Group("/v1")
	if o.RateLimit != nil {
		v1.Use(o.RateLimit)
	}

	read := func(scope string) echo.MiddlewareFunc { return passThrough }
	write := func(scopes ...string) echo.MiddlewareFunc { return passThrough }
	if o.Cache != nil {
		read = o.Cache.Read
		write = o.Cache.InvalidateOnWrite
	}

	pub := v1.Group("/auth")
	pub.POST("/login", h.Auth.Login)
	pub.POST("/refresh", h.Auth.Refresh)

	g := v1.Group("", middleware.JWTAuth(o.JWTSecret), middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager))
	g.POST("/auth/logout", h.Auth.Logout)
	g.GET("/me", h.Auth.Me)

	ct := g.Group("/course-times")
	ct.GET("", h.CourseTimes.List)
	ct.POST("", h.CourseTimes.Create)
	ct.GET("/:id", h.CourseTimes.Get)
	ct.PATCH("/:id", h.CourseTimes.Update)
	ct.DELETE("/:id", h.CourseTimes.Delete)
	ct.POST("/:id/recompute", h.CourseTimes.Recompute)
	ct.GET("/:id/join-persons", h.JoinPersons.ListByTime)
	ct.POST("/:id/join-persons", h.JoinPersons.Add)

	jp := g.Group("/join-persons")
	jp.GET("/:id", h.JoinPersons.Get)
	jp.PATCH("/:id", h.JoinPersons.Update)
	jp.DELETE("/:id", h.JoinPersons.Remove)
	jp.POST("/:id/status", h.JoinPersons.SetStatus)
	g.GET("/deposits", h.JoinPersons.Deposits)

	g.GET("/golf-clubs", h.Admin.ListGolfClubs, read(scopeGolfClubs))
	g.GET("/golf-clubs/:id", h.Admin.GetGolfClub, read(scopeGolfClubs))
	g.GET("/courses", h.Admin.ListCourses, read(scopeCourses))
	g.GET("/site-ids", h.Admin.ListSiteIDs, read(scopeSiteIDs))
	g.GET("/site-ids/:id", h.Admin.GetSiteID, read(scopeSiteIDs))

	bl := g.Group("/black-lists")
	bl.GET("", h.BlackList.List)
	bl.GET("/check", h.BlackList.Check)
	bl.GET("/:id", h.BlackList.Get)
	bl.POST("", h.BlackList.Create)
	bl.PATCH("/:id", h.BlackList.Update)
	bl.DELETE("/:id", h.BlackList.Delete)

	g.GET("/performance/me", h.Performance.Mine)

	admin := g.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/users", h.Admin.ListUsers)
	admin.POST("/users", h.Admin.CreateUser)
	admin.GET("/users/:id", h.Admin.GetUser)
	admin.PATCH("/users/:id", h.Admin.UpdateUser)
	admin.DELETE("/users/:id", h.Admin.DeleteUser)
	admin.POST("/users/:id/password", h.Admin.ResetPassword)

	// course names are listed with their club, so club edits touch both
	admin.PATCH("/golf-clubs/:id", h.Admin.UpdateGolfClub, write(scopeGolfClubs, scopeCourses))
	admin.POST("/courses", h.Admin.CreateCourse, write(scopeCourses, scopeGolfClubs))
	admin.DELETE("/courses/:id", h.Admin.DeleteCourse, write(scopeCourses))
	admin.POST("/site-ids", h.Admin.CreateSiteID, write(scopeSiteIDs))
	admin.PATCH("/site-ids/:id", h.Admin.UpdateSiteID, write(scopeSiteIDs))
	admin.DELETE("/site-ids/:id", h.Admin.DeleteSiteID, write(scopeSiteIDs))

	admin.GET("/performance", h.Performance.All)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
