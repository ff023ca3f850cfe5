package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"biblioteca-backend/internal/library/books"
	"biblioteca-backend/internal/library/categories"
	"biblioteca-backend/internal/library/loans"
	"biblioteca-backend/internal/library/patrons"
	"biblioteca-backend/internal/platform/apidoc"
	"biblioteca-backend/internal/platform/auth"
	"biblioteca-backend/internal/platform/db"
	"biblioteca-backend/internal/platform/requestid"
	"biblioteca-backend/internal/platform/validate"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig(db.DefaultConfigPath)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s version:%s", mode, cfg.Version)
	if mode != "dev" && mode != "release" {
		fmt.Println("mode must be dev or release (config.yaml / APP_MODE)")
		return
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("[ERROR] auth.jwt_secret is empty (set JWT_SECRET)")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	defer conn.Close()
	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	if err := validate.Register(); err != nil {
		log.Fatalf("[ERROR] register validators: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), requestid.Middleware())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestid.Header},
			ExposeHeaders:    []string{"Content-Length", "Location", requestid.Header},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	apidoc.RegisterRoutes(r)

	// /api/v1
	secret := []byte(cfg.Auth.JWTSecret)
	api := r.Group("/api/v1")
	protected := api.Group("", auth.RequireAuth(secret))

	tx := db.NewRunner(conn)
	bookStore := books.NewStore(conn)
	patronStore := patrons.NewStore(conn)

	auth.RegisterRoutes(api, protected, auth.NewService(auth.NewStore(conn), secret, time.Duration(cfg.Auth.TokenTTLHour)*time.Hour))
	categories.RegisterRoutes(protected, categories.NewService(categories.NewStore(conn)))
	books.RegisterRoutes(protected, books.NewService(bookStore, tx))
	patrons.RegisterRoutes(protected, patrons.NewService(patronStore))
	loans.RegisterRoutes(protected, loans.NewService(loans.NewStore(conn), bookStore, patronStore, tx))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "ruta no encontrada"}})
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
			// TLS設定
			certFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Key)
			log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[WARN] no certificate configured, listening on http://%s", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
