package main

import (
	"context"
	"time"

	"github.com/segbon/segbon/config"
	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/notify"
	"github.com/segbon/segbon/routes"
	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase(models.All()...)

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.SeedCatalog(seedCtx, db); err != nil {
		utils.Sugar.Fatalf("seed catalog: %v", err)
	}
	cancel()

	disk, err := utils.NewDisk(cfg.StorageRoot, cfg.StoragePublicPrefix)
	if err != nil {
		utils.Sugar.Fatalf("storage: %v", err)
	}
	cipher, err := utils.NewIDCipher(cfg.IDHashKey, cfg.IDBlockKey)
	if err != nil {
		utils.Sugar.Fatalf("id cipher: %v", err)
	}
	dispatcher, err := notify.NewDispatcherFromConfig(cfg)
	if err != nil {
		utils.Sugar.Fatalf("notifications: %v", err)
	}
	if dispatcher.Push == nil {
		utils.Sugar.Warn("push notifications disabled: OneSignal is not configured")
	}
	if dispatcher.Mail == nil {
		utils.Sugar.Warn("email notifications disabled: no mail provider configured")
	}

	r := routes.SetupRouter(db, routes.Deps{Disk: disk, Cipher: cipher, Dispatcher: dispatcher})

	sweeper := services.NewOrphanSweeper(db, disk, time.Hour)
	scheduler, err := utils.StartScheduler("@hourly", "orphan-sweep", sweeper.Run)
	if err != nil {
		utils.Sugar.Fatalf("scheduler: %v", err)
	}

	srv := utils.NewServer(":"+cfg.AppPort, r)
	srv.OnShutdown(func() {
		<-scheduler.Stop().Done()
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
