package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"twee-kit/compiler"
	"twee-kit/watcher"
)

// Server rappresenta il server API
type Server struct {
	router       *gin.Engine
	compiler     *compiler.Compiler
	logger       *zap.Logger
	watcher      *watcher.FileWatcher
	watcherMutex sync.Mutex
	wsClients    map[*websocket.Conn]bool
	wsMutex      sync.Mutex
	wsUpgrader   websocket.Upgrader
	port         int
}

// ServerConfig configurazione del server
type ServerConfig struct {
	Port       int
	Compiler   *compiler.Compiler
	EnableCORS bool
	Debug      bool
	Logger     *zap.Logger
}

// NewServer crea un nuovo server API
func NewServer(config ServerConfig) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	logger := config.Logger.Named("api")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if config.EnableCORS {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	server := &Server{
		router:    router,
		compiler:  config.Compiler,
		logger:    logger,
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		port: config.Port,
	}

	server.setupRoutes()
	return server
}

// requestLogger registra ogni richiesta con zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("richiesta",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// setupRoutes configura tutti gli endpoint
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthCheck)

		// Story endpoints
		api.POST("/story/parse", s.parseStory)
		api.POST("/story/convert", s.convertStory)
		api.POST("/story/compile", s.compileStory)
		api.POST("/story/validate", s.validateStory)

		// Passage endpoints
		api.GET("/story/passages", s.getPassages)
		api.GET("/story/passage", s.getPassage)

		// Watcher endpoints
		api.POST("/watch/start", s.startWatcher)
		api.POST("/watch/stop", s.stopWatcher)
		api.GET("/watch/status", s.getWatcherStatus)

		// Utils endpoints
		api.GET("/formats", s.getFormats)
		api.GET("/version", s.getVersion)
		api.GET("/ifid", s.newIFID)
		api.POST("/ifid/validate", s.validateIFID)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Handler espone il router, usato anche dai test
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start avvia il server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server avviato",
		zap.String("api", fmt.Sprintf("http://localhost%s/api", addr)),
		zap.String("ws", fmt.Sprintf("ws://localhost%s/ws", addr)))
	return s.router.Run(addr)
}

// Shutdown ferma il watcher e chiude i client WebSocket
func (s *Server) Shutdown() {
	s.watcherMutex.Lock()
	if s.watcher != nil && s.watcher.IsRunning() {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("arresto watcher", zap.Error(err))
		}
	}
	s.watcher = nil
	s.watcherMutex.Unlock()

	s.wsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsMutex.Unlock()
}
