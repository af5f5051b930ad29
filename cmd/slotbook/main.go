package main

import (
	"context"

	bookingshandler "slotbook/internal/bookings/handler"
	bookingsrepo "slotbook/internal/bookings/repository"
	bookingssvc "slotbook/internal/bookings/service"
	bookingsvalidator "slotbook/internal/bookings/validator"
	"slotbook/internal/intake"
	"slotbook/internal/notify"
	"slotbook/internal/scheduler"
	settingshandler "slotbook/internal/settings/handler"
	settingsrepo "slotbook/internal/settings/repository"
	settingssvc "slotbook/internal/settings/service"
	slotshandler "slotbook/internal/slots/handler"
	slotsrepo "slotbook/internal/slots/repository"
	slotssvc "slotbook/internal/slots/service"
	slotsvalidator "slotbook/internal/slots/validator"
	usersrepo "slotbook/internal/users/repository"
	"slotbook/pkg/app"
	"slotbook/pkg/config"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
)

const ServiceName = "slotbook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting slot booking service")

	producer := initProducer(cfg)
	notifier := notify.NewKafkaNotifier(producer, cfg.AdminChatID, cfg.Log)

	slotRepo := slotsrepo.NewMongoSlotRepository(cfg)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg)
	userRepo := usersrepo.NewMongoUserRepository(cfg)
	settingRepo := settingsrepo.NewMongoSettingRepository(cfg)

	ctx := context.Background()
	if err := slotRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create slot indexes", "error", err)
	}

	settingService := settingssvc.NewSettingService(settingRepo, cfg, notifier)
	if err := settingService.EnsureDefaults(ctx); err != nil {
		cfg.Log.Fatal("Failed to seed default settings", "error", err)
	}

	holdScheduler := scheduler.NewHoldScheduler(cfg.RequestTimeout, cfg.Log)

	slotService := slotssvc.NewSlotService(slotRepo, slotsvalidator.NewSlotValidator(cfg.Log), cfg)
	bookingService := bookingssvc.NewBookingService(
		bookingRepo,
		slotRepo,
		userRepo,
		settingService,
		notifier,
		holdScheduler,
		bookingsvalidator.NewBookingValidator(cfg.MaxIntakePhotos, cfg.Log),
		cfg,
	)
	holdScheduler.SetExpireFunc(bookingService.ExpireHold)

	// Deadlines survive restarts in the booking records; timers do not.
	if err := bookingService.ReconcileHolds(ctx); err != nil {
		cfg.Log.Fatal("Failed to reconcile payment holds", "error", err)
	}

	sessionStore := intake.NewInMemorySessionStore(cfg.SessionTTL)
	intakeService := intake.NewService(sessionStore, slotService, bookingService, cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		slotshandler.NewSlotHandler(slotService, cfg.Log),
		settingshandler.NewSettingHandler(settingService, cfg.Log),
		intake.NewHandler(intakeService, cfg.Log),
	)
	serverApp.OnShutdown(holdScheduler.Stop)
	serverApp.OnShutdown(sessionStore.Stop)
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	serverApp.Run()

	cfg.GracefulShutdown()
}

func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, notify.Topic, notify.DLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	return producer
}
