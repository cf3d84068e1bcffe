package main

import (
	"github.com/cppla/commentboard/config"
	"github.com/cppla/commentboard/metrics"
	"github.com/cppla/commentboard/models"
	"github.com/cppla/commentboard/routes"
	"github.com/cppla/commentboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.Comment{})

	if sqlDB, err := db.DB(); err == nil {
		if err := metrics.RegisterDBStats(sqlDB); err != nil {
			utils.Sugar.Warnf("db stats collector not registered: %v", err)
		}
	}

	r, err := routes.SetupRouter(cfg, db)
	if err != nil {
		utils.Sugar.Fatalf("router setup failed: %v", err)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful, db=%s)", cfg.AppPort, cfg.DBDriver)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
