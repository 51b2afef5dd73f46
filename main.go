package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/app"
	"github.com/Billy-Davies-2/mitzi/internal/auth"
	"github.com/Billy-Davies-2/mitzi/internal/config"
	grpcserver "github.com/Billy-Davies-2/mitzi/internal/grpc"
	"github.com/Billy-Davies-2/mitzi/internal/handlers"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/render"
	"github.com/Billy-Davies-2/mitzi/internal/store"
	"google.golang.org/grpc"
)

func main() {
	cfg := config.LoadFromEnv()
	logger.InitWithWriter(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	logger.Info("Starting mitzi commission sheet service", "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, closeEvents, err := app.OpenEvents(cfg)
	if err != nil {
		logger.Error("Failed to initialize event bus", "error", err)
		log.Fatalf("Failed to initialize event bus: %v", err)
	}
	defer closeEvents()

	storage, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open sheet storage", "error", err, "driver", cfg.Store.Driver)
		log.Fatalf("Failed to open sheet storage: %v", err)
	}
	sheet, err := app.NewStore(ctx, storage, cfg.Store.Key, store.WithPublisher(events))
	if err != nil {
		logger.Error("Failed to load sheet", "error", err)
		log.Fatalf("Failed to load sheet: %v", err)
	}
	defer sheet.Close()

	analytics, err := app.OpenAnalytics(cfg)
	if err != nil {
		logger.Error("Failed to initialize ClickHouse", "error", err, "address", cfg.ClickHouse.Addr)
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	if analytics != nil {
		defer analytics.Close()
	}

	authProvider, err := app.NewAuth(cfg)
	if err != nil {
		logger.Error("Failed to initialize authentication", "error", err)
		log.Fatalf("Failed to initialize authentication: %v", err)
	}

	loader, catalog, err := app.NewFonts(cfg)
	if err != nil {
		logger.Error("Failed to initialize fonts", "error", err)
		log.Fatalf("Failed to initialize fonts: %v", err)
	}

	imageStore := app.ImageStore(storage)
	rendererOpts := []render.Option{
		render.WithImages(render.NewImages(cfg.StaticDir, render.WithImageStore(imageStore))),
		render.WithFontLoader(loader),
	}
	if analytics != nil {
		rendererOpts = append(rendererOpts, render.WithRecorder(analytics))
	}
	renderer := render.NewRenderer(loader.Registry(), rendererOpts...)

	// gRPC
	// Without a token the service is only reachable from this host
	grpcHost := "127.0.0.1"
	var grpcOpts []grpc.ServerOption
	if cfg.GRPCToken != "" {
		grpcHost = "0.0.0.0"
		grpcOpts = append(grpcOpts, grpc.UnaryInterceptor(grpcserver.TokenInterceptor(cfg.GRPCToken)))
	} else {
		logger.Warn("GRPC_TOKEN not set, gRPC listens on loopback only")
	}
	grpcServer := grpc.NewServer(grpcOpts...)
	grpcserver.RegisterSheetService(grpcServer, grpcserver.NewServer(sheet, renderer, events))
	go func() {
		lis, err := net.Listen("tcp", net.JoinHostPort(grpcHost, cfg.GRPCPort))
		if err != nil {
			logger.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}

		logger.Info("gRPC server starting", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
		}
	}()

	// HTTP
	mux := http.NewServeMux()

	fs := http.FileServer(http.Dir(cfg.StaticDir))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.HandleFunc("/images/", handlers.ImageHandler(imageStore, cfg.StaticDir))

	mux.HandleFunc("/auth/login", authProvider.LoginHandler)
	mux.HandleFunc("/auth/callback", authProvider.CallbackHandler)
	mux.HandleFunc("/auth/logout", authProvider.LogoutHandler)
	mux.HandleFunc("/auth/me", authProvider.Middleware(meHandler))

	api := handlers.NewAPIHandlers(sheet, events, loader, catalog, renderer)
	if analytics != nil {
		api.WithStats(analytics)
	}
	api.Register(mux, authProvider.Middleware)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.StaticDir, "index.html"))
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown incomplete", "error", err)
		}
	}()

	logger.Info("Server starting", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		log.Fatal(err)
	}
}

// meHandler reports the signed-in user and what they may do
func meHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":    user,
		"canEdit": auth.CanEdit(user),
		"isAdmin": auth.IsAdmin(user),
	})
}
