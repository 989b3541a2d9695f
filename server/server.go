package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackscorpionster/rubits/auth"
	"github.com/blackscorpionster/rubits/config"
	"github.com/blackscorpionster/rubits/metrics"
	"github.com/blackscorpionster/rubits/middleware"
	"github.com/blackscorpionster/rubits/pkg/winfeed"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// App represents the ticket service application
type App struct {
	engine        *gin.Engine
	config        *config.Config
	logger        zerolog.Logger
	service       *TicketService
	metrics       *metrics.Metrics
	feed          *winfeed.Feed
	limiter       *middleware.RateLimiter
	httpServer    *http.Server
	onShutdown    []func()
	ticketHandler *TicketHandler
	feedHandler   *WinFeedHandler
}

// Options holds server configuration options
type Options struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Service *TicketService
	// Feed and Metrics are optional
	Feed    *winfeed.Feed
	Metrics *metrics.Metrics
}

// New creates a new ticket service application
func New(opts Options) *App {
	// Amounts go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	feed := opts.Feed
	if feed == nil {
		feed = winfeed.New(0, 0)
	}

	app := &App{
		engine:  gin.New(),
		config:  opts.Config,
		logger:  opts.Logger,
		service: opts.Service,
		metrics: opts.Metrics,
		feed:    feed,
	}

	rl := opts.Config.Server.RateLimit
	if rl.RequestsPerSecond > 0 {
		app.limiter = middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, opts.Logger)
		if app.metrics != nil {
			app.limiter.OnLimited = app.metrics.RecordRateLimited
		}
	}

	app.ticketHandler = NewTicketHandler(opts.Service, opts.Logger)
	app.feedHandler = NewWinFeedHandler(feed, opts.Metrics, opts.Logger)

	return app
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))

	a.engine.Use(middleware.TraceID())

	if a.metrics != nil {
		a.engine.Use(middleware.Metrics(a.metrics))
	}

	a.engine.Use(middleware.Logging(a.logger))

	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	store := "ok"
	if a.service != nil {
		if err := a.service.Ping(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Health check: ticket store unreachable")
			status, code, store = "unhealthy", http.StatusServiceUnavailable, "unreachable"
		}
	}

	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now(),
		"environment": a.config.Environment,
		"store":       store,
		"listeners":   a.feed.Listeners(),
	})
}

// RegisterRoutes registers the ticket API, the win feed and /metrics
//
// Flow: HTTP Request -> routes -> TicketHandler -> TicketService -> store / validator
//
// Routes registered:
//   - POST /login                  -> TicketHandler.Login
//   - GET  /draws                  -> TicketHandler.ListDraws
//   - GET  /tickets                -> TicketHandler.ListTickets
//   - GET  /tickets/:id            -> TicketHandler.GetTicket
//   - GET  /tickets/:id/progress   -> TicketHandler.GetProgress
//   - PUT  /tickets/:id/progress   -> TicketHandler.SaveProgress
//   - POST /purchase               -> TicketHandler.Purchase
//   - POST /validate-game          -> TicketHandler.ValidateGame
//   - GET  /ws/wins                -> WinFeedHandler.Stream
//   - GET  /metrics                -> prometheus
func (a *App) RegisterRoutes() {
	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if a.limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{a.limiter.Handler(), h}
	}

	api := a.engine.Group("", middleware.Timeout(a.config.Server.RequestTimeout))
	api.POST("/login", limited(a.ticketHandler.Login)...)
	api.GET("/draws", a.ticketHandler.ListDraws)

	player := api.Group("", auth.JWTMiddleware(auth.JWTConfig{
		Secret:   a.config.JWT.Secret,
		Required: a.config.JWT.Required,
	}, a.logger))
	{
		player.GET("/tickets", a.ticketHandler.ListTickets)
		player.GET("/tickets/:id", a.ticketHandler.GetTicket)
		player.GET("/tickets/:id/progress", a.ticketHandler.GetProgress)
		player.PUT("/tickets/:id/progress", a.ticketHandler.SaveProgress)
		player.POST("/purchase", limited(a.ticketHandler.Purchase)...)
		player.POST("/validate-game", limited(a.ticketHandler.ValidateGame)...)
	}

	a.engine.GET("/ws/wins", a.feedHandler.Stream)

	if a.metrics != nil {
		a.engine.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	a.logger.Info().Msg("Ticket routes registered")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Feed returns the win feed served on /ws/wins
func (a *App) Feed() *winfeed.Feed {
	return a.feed
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Handler returns the root http.Handler, gzip-wrapped when enabled.
// Websocket upgrades bypass compression.
func (a *App) Handler() (http.Handler, error) {
	if !a.config.Server.EnableGzip {
		return a.engine, nil
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}
	compressed := wrap(a.engine)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || websocket.IsWebSocketUpgrade(r) {
			a.engine.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	}), nil
}

func (a *App) newHTTPServer() (*http.Server, error) {
	handler, err := a.Handler()
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}, nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunWithContext(ctx)
}

// RunWithContext starts the HTTP server and shuts it down when ctx is done
func (a *App) RunWithContext(ctx context.Context) error {
	srv, err := a.newHTTPServer()
	if err != nil {
		return err
	}
	a.httpServer = srv

	if a.limiter != nil {
		a.limiter.StartCleanup(ctx, time.Minute)
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	// Hooks run after in-flight requests drained
	for _, fn := range a.onShutdown {
		fn()
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
