package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dopemusic/dopesite/assets"
	"github.com/dopemusic/dopesite/config"
	"github.com/dopemusic/dopesite/models"
	"github.com/dopemusic/dopesite/routes"
	"github.com/dopemusic/dopesite/store"
	"github.com/dopemusic/dopesite/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	if cfg.InsecureSecret {
		utils.Sugar.Warn("SECRET_KEY is not set, sessions are signed with a well-known development key")
	}

	db, err := config.InitDatabase(cfg, models.All()...)
	if err != nil {
		utils.Sugar.Fatalf("database init failed: %v", err)
	}

	am, err := assets.NewManager(cfg.UploadDir, int64(cfg.MaxUploadMB)<<20, utils.Logger.With(zap.String("component", "assets")))
	if err != nil {
		utils.Sugar.Fatalf("upload directory unavailable: %v", err)
	}

	r, err := routes.SetupRouter(cfg, routes.Deps{
		DB:       db,
		Sessions: utils.NewSessionStore(cfg),
		Assets:   am,
	})
	if err != nil {
		utils.Sugar.Fatalf("router setup failed: %v", err)
	}

	// Remove upload files left behind by interrupted post writes (best-effort)
	ctx, cancel := context.WithCancel(context.Background())
	utils.StartOrphanCleaner(ctx, store.NewPostStore(db), am,
		time.Duration(cfg.OrphanSweepMinutes)*time.Minute,
		time.Duration(cfg.OrphanGraceMinutes)*time.Minute)

	srv := utils.GraceServer(":"+cfg.AppPort, r)
	srv.OnShutdown(cancel)
	srv.OnShutdown(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
