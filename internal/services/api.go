package services

import (
	"fmt"

	"sage/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Api struct {
	server         *fiber.App
	hub            *Hub
	sessions       *SessionManager
	archive        *ArchiveService
	page           *Templator
	port           string
	allowedOrigins string
	falKey         string
	defaultPrompt  string
}

func NewApi(config config.ApiConfig, falKey, defaultPrompt string, hub *Hub, sessions *SessionManager, archive *ArchiveService) *Api {
	if config.AllowedOrigins == "" {
		config.AllowedOrigins = "*"
	}

	a := &Api{
		server:         fiber.New(fiber.Config{DisableStartupMessage: true}),
		hub:            hub,
		sessions:       sessions,
		archive:        archive,
		page:           &Templator{},
		port:           config.Port,
		allowedOrigins: config.AllowedOrigins,
		falKey:         falKey,
		defaultPrompt:  defaultPrompt,
	}

	allowCredentials := a.allowedOrigins != "*"

	a.server.Use(RequestLogger())
	a.server.Use(cors.New(cors.Config{
		AllowOrigins:     a.allowedOrigins,
		AllowCredentials: allowCredentials,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization,Accept,Origin," + falTargetHeader,
	}))

	a.addRoutes()
	return a
}

func (a *Api) Start() error {
	return a.server.Listen(fmt.Sprint(":", a.port))
}

func (a *Api) Shutdown() error {
	return a.server.Shutdown()
}

func (a *Api) addRoutes() {
	a.server.Get("/", a.Page())
	a.server.Get("/health", a.Health())
	a.server.Get("/sessions/:id", a.SessionState())
	a.server.Get("/sessions/:id/export", a.Export())
	a.server.Post("/sessions/:id/archive", a.Archive())

	// credential-injecting passthrough to the inference service
	a.server.All("/api/proxy", a.Proxy())

	// websocket connection
	a.server.Use("/ws", a.WsUpgrade())
	a.server.Get("/ws/:id", a.Notifications())
}
