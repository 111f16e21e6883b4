package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	globalConfig "github.com/omnidesk/channeledge/config"
	domainSession "github.com/omnidesk/channeledge/domains/session"
	"github.com/omnidesk/channeledge/infrastructure/backend"
	"github.com/omnidesk/channeledge/infrastructure/sessionstore"
	"github.com/omnidesk/channeledge/infrastructure/transport"
	"github.com/omnidesk/channeledge/pkg/eventbus"
	"github.com/omnidesk/channeledge/pkg/utils"
	"github.com/omnidesk/channeledge/usecase"
)

// serviceSessionID is the edge's own credential session, seeded from the
// environment and used for the watch loop and transport bootstrap.
const serviceSessionID = "service"

var (
	appPort  string
	appDebug bool

	bus             *eventbus.Bus
	sessionStore    *sessionstore.Memory
	tokenUsecase    domainSession.ITokenUsecase
	backendClient   *backend.Client
	connManager     *transport.Manager
	channelRegistry *usecase.ChannelRegistry
	channelWatcher  *usecase.ChannelWatcher
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "channeledge",
	Short: "Edge gateway for live channel connectivity",
	Long: `channeledge keeps a live connection-status view of a tenant's
communication channels synchronized between the messaging backend and
admin consoles, and fronts all REST traffic with a token-refreshing proxy.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()
	cobra.OnInitialize(initEnvConfig, initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&appPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&appDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
}

// initEnvConfig loads configuration from environment variables, then
// applies flag overrides.
func initEnvConfig() {
	if _, err := globalConfig.LoadConfig(); err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	if appPort != "" {
		globalConfig.Global.App.Port = appPort
	}
	if appDebug || viper.GetBool("app_debug") {
		globalConfig.Global.App.Debug = true
	}
	globalConfig.Global.App.ServerID = utils.GetServerID(globalConfig.Global.App.ServerID)
}

// initApp wires the component graph: session store -> token usecase ->
// backend client / connection manager -> registry -> watcher.
func initApp() {
	if globalConfig.Global.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg := globalConfig.Global

	bus = eventbus.New()
	sessionStore = sessionstore.NewMemory()
	tokenUsecase = usecase.NewTokenService(sessionStore, cfg)

	if cfg.Backend.ServiceAccessToken != "" {
		sessionStore.Put(&domainSession.CredentialSession{
			ID:           serviceSessionID,
			AccessToken:  cfg.Backend.ServiceAccessToken,
			RefreshToken: cfg.Backend.ServiceRefreshToken,
		})
	} else {
		logrus.Warn("[APP] No service credentials configured; watch loop will run unauthenticated")
	}

	serviceToken := func(ctx context.Context) (string, error) {
		return tokenUsecase.EnsureAccessToken(ctx, serviceSessionID)
	}

	backendClient = backend.NewClient(cfg.Backend.APIBaseURL, serviceToken)
	connManager = transport.NewManager(cfg.Backend.TransportBaseURL, serviceToken, cfg.Transport)
	channelRegistry = usecase.NewChannelRegistry(backendClient, bus)
	channelWatcher = usecase.NewChannelWatcher(channelRegistry, connManager, cfg.Watch)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of transport connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if connManager != nil {
		connManager.CloseAll()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
