// Package wire provides dependency injection for the cardwatch
// application. It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"sync"

	"github.com/example/cardwatch/internal/adapters/board"
	"github.com/example/cardwatch/internal/adapters/delivery"
	"github.com/example/cardwatch/internal/adapters/render"
	"github.com/example/cardwatch/internal/adapters/sqlite"
	"github.com/example/cardwatch/internal/app"
	"github.com/example/cardwatch/internal/config"
	"github.com/example/cardwatch/internal/core/policy"
	"github.com/example/cardwatch/internal/db"
	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/ports/secondary"
)

var (
	cardService    primary.CardService
	eventService   primary.EventService
	monitorService primary.MonitorService
	once           sync.Once

	configPath string
)

// SetConfigPath overrides the config file location before the first
// service lookup. Used by the root --config flag.
func SetConfigPath(path string) {
	configPath = path
}

// ConfigPath returns the effective config file location.
func ConfigPath() string {
	if configPath != "" {
		return configPath
	}
	path, err := config.DefaultPath()
	if err != nil {
		log.Fatalf("failed to resolve config path: %v", err)
	}
	return path
}

// CardService returns the singleton CardService instance.
func CardService() primary.CardService {
	once.Do(initServices)
	return cardService
}

// EventService returns the singleton EventService instance.
func EventService() primary.EventService {
	once.Do(initServices)
	return eventService
}

// MonitorService returns the singleton MonitorService instance.
func MonitorService() primary.MonitorService {
	once.Do(initServices)
	return monitorService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	path := ConfigPath()

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbPath, err := cfg.StatePath()
	if err != nil {
		log.Fatalf("failed to resolve state database path: %v", err)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	cardRepo := sqlite.NewCardRepository(database)
	eventRepo := sqlite.NewEventRepository(database)

	renderer, err := render.NewRenderer()
	if err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}

	cardService = app.NewCardService(cardRepo)
	eventService = app.NewEventService(eventRepo)
	monitorService = app.NewMonitorService(path, app.MonitorDeps{
		Cards:     cardRepo,
		Events:    eventRepo,
		Renderer:  renderer,
		NewBoard:  newBoardClient,
		NewSender: newSender,
	})
}

// newBoardClient builds a board client from one config snapshot, so
// endpoint or token changes take effect on the next cycle.
func newBoardClient(cfg *config.Config) secondary.BoardClient {
	return board.NewClient(cfg.Board.BaseURL, cfg.Board.Token)
}

// newSender builds the channel gateway from one config snapshot.
// Channels without a configured endpoint are left out; sends on them
// fail permanently and are recorded as such.
func newSender(cfg *config.Config, bc secondary.BoardClient) app.Sender {
	providers := make(map[policy.Channel]secondary.DeliveryProvider)
	if cfg.Delivery.EmailURL != "" {
		providers[policy.ChannelEmail] = delivery.NewEmailProvider(
			cfg.Delivery.EmailURL, cfg.Delivery.EmailToken, cfg.Delivery.EmailFrom)
	}
	if cfg.Delivery.SMSURL != "" {
		providers[policy.ChannelSMS] = delivery.NewSMSProvider(
			cfg.Delivery.SMSURL, cfg.Delivery.SMSToken)
	}
	if cfg.Delivery.ChatWebhookURL != "" {
		providers[policy.ChannelChat] = delivery.NewChatProvider(cfg.Delivery.ChatWebhookURL)
	}
	return app.NewGateway(bc, providers, app.DefaultRetryConfig())
}
