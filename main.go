package main

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/marketgrid/storefront-backend-go/config"
	"github.com/marketgrid/storefront-backend-go/database"
	"github.com/marketgrid/storefront-backend-go/handlers"
	"github.com/marketgrid/storefront-backend-go/imagestore"
	"github.com/marketgrid/storefront-backend-go/mailer"
	custommw "github.com/marketgrid/storefront-backend-go/middleware"
	"github.com/marketgrid/storefront-backend-go/routes"
	"github.com/marketgrid/storefront-backend-go/store"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	config.LoadEnv()
	cfg := config.FromEnv()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(custommw.Metrics)

	db, err := database.Connect(cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.EnsureIndexes(db); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	images := imagestore.Chain{
		imagestore.Local{Dir: cfg.ImageDir, BaseURL: cfg.ImageBaseURL},
	}

	h := handlers.New(
		store.NewMongoProducts(db),
		store.NewMongoOrders(db),
		store.NewMongoUsers(db),
		store.NewMongoSettings(db),
		mailer.LogMailer{},
		images,
		cfg,
	)

	routes.SetupRoutes(e, h)
	e.Static(cfg.ImageBaseURL, cfg.ImageDir)

	log.WithField("port", cfg.Port).Info("server starting")
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
