package main

import (
	"context"
	"embed"
	"fmt"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"gorm.io/gorm/logger"

	"promptdesk/internal/api"
	"promptdesk/internal/config"
	"promptdesk/internal/database"
	"promptdesk/internal/services"
	"promptdesk/internal/telemetry"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg := config.Load()

	log, err := telemetry.InitLogger(cfg.LogDir)
	if err != nil {
		fmt.Println("Error initializing logger:", err)
		return
	}

	tracer, meter, telemetryCleanup, err := telemetry.InitTelemetry(context.Background(), cfg.LogDir)
	if err != nil {
		fmt.Println("Error initializing telemetry:", err)
		return
	}

	db, err := database.Init(database.Config{
		Path:     cfg.DBPath,
		LogLevel: logger.Warn,
	})
	if err != nil {
		fmt.Println("Error opening database:", err)
		return
	}

	keyringService := services.NewKeyringService()
	apiClient := api.NewClient(cfg.BackendURL, keyringService, cfg.HTTPTimeout, log)

	svc := services.NewServices(db, apiClient, services.PollOptions{
		MaxAttempts: cfg.PollAttempts,
		Interval:    cfg.PollInterval,
	}, log)
	svc.Sessions.SetOwner(cfg.UserID)
	if err := svc.Submissions.InitTelemetry(tracer, meter); err != nil {
		log.Warn("submission telemetry disabled", "error", err)
	}

	app := NewApp(cfg, log, keyringService, svc)
	app.telemetryCleanup = telemetryCleanup
	if sqlDB, err := db.DB(); err == nil {
		app.dbClose = sqlDB.Close
	}

	// Create application with options
	err = wails.Run(&options.App{
		Title:  "Promptdesk",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Linux: &linux.Options{
			WindowIsTranslucent: false,
			WebviewGpuPolicy:    linux.WebviewGpuPolicyAlways,
			ProgramName:         "Promptdesk",
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
