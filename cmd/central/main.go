package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evcharge/central/config"
	"github.com/evcharge/central/console"
	"github.com/evcharge/central/dashboard"
	"github.com/evcharge/central/dispatcher"
	"github.com/evcharge/central/events"
	"github.com/evcharge/central/httpapi"
	"github.com/evcharge/central/registry"
	"github.com/evcharge/central/registrypoller"
	"github.com/evcharge/central/session"
	"github.com/evcharge/central/store/filestore"
)

var version = "dev"

func main() {
	fmt.Printf("evcharge-central %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	data := cfg.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := filestore.Open(data.DataDir)
	if err != nil {
		log.Fatalf("filestore: %v", err)
	}
	defer st.Close()

	reg := registry.New()
	bus := events.New()

	mgr, err := session.New(ctx, st, reg, bus, cfg.NominalSessionDuration())
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	listener := dispatcher.New(data.ListenAddr, mgr)
	go func() {
		log.Printf("listening for agents on %s", data.ListenAddr)
		if err := listener.Run(ctx); err != nil {
			log.Printf("dispatcher: %v", err)
		}
	}()

	poller := registrypoller.New(data.RegistryURL, cfg.RegistryPollIntervalDuration(), mgr)
	go poller.Run(ctx)
	if data.RegistryURL != "" {
		log.Printf("polling registry %s every %s", data.RegistryURL, cfg.RegistryPollIntervalDuration())
	}

	printer := dashboard.New(mgr, bus, cfg.DashboardIntervalDuration())
	go printer.Run(ctx)

	jwtSecret := []byte(data.JWTSecret)
	if len(jwtSecret) == 0 {
		jwtSecret = randomSecret()
		log.Println("JWT_SECRET not set; generated an ephemeral secret, admin tokens will not survive a restart")
	}

	var adminHash string
	if data.AdminPassword != "" {
		adminHash, err = httpapi.HashPassword(data.AdminPassword)
		if err != nil {
			log.Fatalf("hash admin password: %v", err)
		}
		log.Printf("admin account seeded: %s", data.AdminUsername)
	} else {
		log.Println("ADMIN_PASSWORD not set; admin HTTP login disabled (operator console remains available)")
	}

	srv := &http.Server{
		Addr: data.HTTPAddr,
		Handler: httpapi.New(httpapi.Deps{
			Manager:   mgr,
			Bus:       bus,
			JWTSecret: jwtSecret,
			AdminUser: data.AdminUsername,
			AdminHash: adminHash,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("http api listening on %s", data.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	opConsole := console.New(mgr, os.Stdin, os.Stdout)
	consoleDone := make(chan struct{})
	go func() {
		opConsole.Run(ctx)
		close(consoleDone)
	}()

	select {
	case <-sigCh:
		log.Println("shutting down…")
	case <-consoleDone:
		log.Println("operator console exited, shutting down…")
	}
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := listener.Close(); err != nil {
		log.Printf("dispatcher shutdown: %v", err)
	}
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("generate jwt secret: %v", err)
	}
	return []byte(hex.EncodeToString(b))
}
