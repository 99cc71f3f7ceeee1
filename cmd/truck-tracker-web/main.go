package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Bucknalla/go-truck-tracker/app"
	"github.com/Bucknalla/go-truck-tracker/internal/config"
	"github.com/Bucknalla/go-truck-tracker/route"
	"github.com/Bucknalla/go-truck-tracker/web"
)

func initLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openStore(path string) (app.Store, error) {
	if path == "" {
		return app.NewMemoryStore(), nil
	}
	return app.OpenFileStore(path)
}

func main() {
	initLogging()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load(getEnv("TRUCK_CONFIG", ""))
	if err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cfg.Store.Path)
	if err != nil {
		log.Fatal(err)
	}

	playerConfig := route.DefaultConfig()
	playerConfig.Interval = cfg.Player.Interval
	playerConfig.NearArrivalSteps = cfg.Player.NearArrivalSteps
	player, err := route.NewPlayer(playerConfig)
	if err != nil {
		log.Fatal(err)
	}
	defer player.Stop()

	appConfig := app.DefaultConfig()
	appConfig.OneTimeCode = cfg.Auth.OneTimeCode
	if cfg.Player.RouteFile != "" {
		r, err := route.LoadRouteFile(cfg.Player.RouteFile)
		if err != nil {
			log.Fatal(err)
		}
		appConfig.Route = r
		appConfig.Home = r[len(r)-1]
	}

	tracker, err := app.New(appConfig, store, player)
	if err != nil {
		log.Fatal(err)
	}
	tracker.Init()

	if cfg.Player.RouteFile != "" && cfg.Player.WatchRoute {
		stopWatch, err := config.WatchRoute(cfg.Player.RouteFile, func(r route.Route) {
			if err := tracker.SetRoute(r); err != nil {
				log.Printf("Route reload rejected: %v", err)
			}
		})
		if err != nil {
			log.Fatal(err)
		}
		defer stopWatch()
	}

	server := web.NewServer(tracker, cfg.Server.StaticDir)
	defer server.Close()

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting Truck Tracker Web Server on port %d", cfg.Server.Port)
		log.Printf("Open http://localhost:%d in your browser", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
