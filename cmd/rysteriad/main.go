package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"fight-club/internal/account"
	"fight-club/internal/balance"
	"fight-club/internal/config"
	"fight-club/internal/observability"
	"fight-club/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 no .env file found, using environment variables only")
	} else {
		log.Println("✅ loaded environment from .env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  RYSTERIA ARENA SERVER")
	log.Println("🎮 ================================")

	appConfig := config.Load()

	tables, err := balance.Load()
	if err != nil {
		log.Fatalf("💥 failed to load balance tables: %v", err)
	}

	log.Printf("🗺️  arena: %dx%d grid, biome %d", appConfig.Arena.GridDimension, appConfig.Arena.GridDimension, appConfig.Arena.BiomeID)
	log.Printf("🛡️  limits: %d entities, %d clients, %d queue depth",
		appConfig.Limits.MaxEntities, appConfig.Limits.MaxClients, appConfig.Limits.MaxMessageQueue)

	server.Sandbox = appConfig.Crypto.Sandbox
	if appConfig.Crypto.Sandbox {
		log.Println("⚠️ SANDBOX build: squad_kick protects devs")
	}

	s := server.New(tables, appConfig.Arena.BiomeID)

	if sidecarURL := os.Getenv("ACCOUNT_SIDECAR_URL"); sidecarURL != "" {
		zapLogger, zerr := zap.NewProduction()
		if zerr != nil {
			zapLogger = zap.NewNop()
		}
		s.Sidecar = account.NewClient(sidecarURL, zapLogger, account.Handlers{
			OnAliasSet:    s.HandleAliasSet,
			OnInitialBlob: s.HandleInitialBlob,
			OnForceKick:   s.HandleForceKick,
		})
		go s.Sidecar.Run()
		log.Printf("🔗 account sidecar: %s", sidecarURL)
	} else {
		log.Println("⚠️ ACCOUNT_SIDECAR_URL not set — account persistence disabled")
	}

	debugCfg := observability.DefaultConfig()
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		debugCfg.Enabled = false
	}
	observability.StartDebugServer(debugCfg)

	s.Start()
	log.Println("✅ tick loop started")

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.Hub.HandleUpgrade)

	addr := ":" + strconv.Itoa(appConfig.Server.Port)
	go func() {
		log.Printf("🌐 game socket on ws://localhost%s (subprotocol g)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("💥 game socket listener failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ server ready, press Ctrl+C to stop")
	<-quit

	log.Println("🛑 shutting down...")
	if s.Sidecar != nil {
		s.Sidecar.Close()
	}
	s.Stop()
	log.Println("👋 goodbye!")
}
