package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	coreconfig "github.com/omnidesk/channeledge/config"
	"github.com/omnidesk/channeledge/ui/rest"
	"github.com/omnidesk/channeledge/ui/rest/middleware"
	"github.com/omnidesk/channeledge/ui/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the edge gateway",
	Long:  `Serves the token gateway, the live channel registry and the admin fan-out hub.`,
	Run:   serveGateway,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveGateway(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	app := fiber.New(fiber.Config{
		Network:               "tcp",
		AppName:               "Channeledge Gateway",
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowCredentials: true,
	}))
	app.Use(middleware.Recovery())

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	ctx, cancel := context.WithCancel(context.Background())

	apiGroup := app.Group(cfg.App.BasePath)
	rest.InitRestGateway(apiGroup, tokenUsecase, sessionStore, cfg)
	rest.InitRestChannels(apiGroup, channelRegistry, backendClient)
	rest.InitRestHealth(apiGroup, connManager, sessionStore)

	hub := websocket.NewHub(bus, channelRegistry)
	hub.RegisterRoutes(apiGroup)
	go hub.Run(ctx)

	channelWatcher.Start(ctx)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[SERVE] Reception of termination signal, shutting down gracefully...")
		cancel()
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[SERVE] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalf("[SERVE] %v", err)
	}
}
