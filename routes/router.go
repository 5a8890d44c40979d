package routes

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/assets"
	"github.com/dopemusic/dopesite/config"
	"github.com/dopemusic/dopesite/controllers"
	"github.com/dopemusic/dopesite/middleware"
	"github.com/dopemusic/dopesite/store"
	"github.com/dopemusic/dopesite/utils"
	"github.com/dopemusic/dopesite/web"
)

// Deps are the long-lived services the handlers run on.
type Deps struct {
	DB       *gorm.DB
	Sessions utils.SessionStore
	Assets   *assets.Manager
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) (*gin.Engine, error) {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = 8 << 20

	// Access log goes to its own rolling file when configured
	gl := utils.Logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			gl = l
		} else {
			utils.Sugar.Warnw("gin log file unavailable, using application logger", "path", cfg.GinPath, "error", err)
		}
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	tmpl, err := web.Templates(template.FuncMap{
		"format_datetime": utils.FormatDateTime,
		"upload_url":      func(ref string) string { return "/uploads/" + url.PathEscape(ref) },
		// post bodies are sanitized with the UGC policy before they are stored
		"safe_html": func(s string) template.HTML { return template.HTML(utils.SanitizeText(s)) },
	})
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	r.StaticFS("/static", http.FS(web.Static()))
	r.Static("/uploads", deps.Assets.Dir())

	sessions := middleware.NewSessionManager(deps.Sessions, cfg.SecretKey,
		time.Duration(cfg.SessionTTLHours)*time.Hour, cfg.CookieSecure, utils.Logger)
	r.Use(sessions.Middleware())
	// Record PV after each request
	r.Use(middleware.PageViewRecorder(deps.DB))

	view := controllers.View{Timezone: cfg.DisplayTimezone, TimeLayout: cfg.DisplayTimeLayout}
	pageController := controllers.NewPageController(deps.DB, view)
	authController := controllers.NewAuthController(store.NewUserStore(deps.DB), sessions, view)
	postController := controllers.NewPostController(
		store.NewPostStore(deps.DB),
		deps.Assets,
		controllers.PostPolicy{Edit: cfg.PostEditPolicy, Conflict: cfg.EditConflictPolicy},
		view,
		utils.Logger.With(zap.String("component", "posts")),
	)
	statsController := controllers.NewStatsController(deps.DB)

	r.GET("/health", pageController.Health)

	r.GET("/", pageController.Show("index.html"))
	r.GET("/index", pageController.Show("index.html"))
	r.GET("/about", pageController.Show("about.html"))
	r.GET("/services", pageController.Show("services.html"))
	r.GET("/contacts", pageController.Show("contacts.html"))
	r.GET("/label", pageController.Show("label.html"))
	r.GET("/media", postController.Media)

	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	r.GET("/login", authController.LoginForm)
	r.POST("/login", loginLimiter.Middleware(), authController.Login)
	r.GET("/logout", middleware.RequireAuth(authController.Logout))

	r.GET("/create", middleware.RequireAuth(postController.CreateForm))
	r.POST("/create", middleware.RequireAuthResumeAt(middleware.ResumeAtPath, postController.Create))
	r.GET("/edit/:post_id", middleware.RequireAuth(postController.EditForm))
	r.POST("/edit/:post_id", middleware.RequireAuthResumeAt(middleware.ResumeAtPath, postController.Edit))
	r.POST("/delete/:post_id", middleware.RequireAuth(postController.Delete))

	r.GET("/stats", middleware.RequireAuth(statsController.GetStats))
	r.GET("/stats/pages", middleware.RequireAuth(statsController.GetTopPages))

	r.NoRoute(view.NotFound)
	r.NoMethod(view.MethodNotAllowed)

	return r, nil
}
