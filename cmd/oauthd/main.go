// Command oauthd runs the OAuth authorization-server engine with the
// in-memory reference stores: a minimal deployment for development and
// integration testing. Production deployments embed the server package
// with their own stores and consent UI.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/appleboy/graceful"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/extension"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/server"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/token"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	recorder := metrics.Init(cfg.MetricsEnabled)

	clients := store.NewInMemoryClientStore()
	if err := registerDemoClients(clients); err != nil {
		log.Fatalf("Failed to register demo clients: %v", err)
	}

	codes := store.NewInMemoryCodeManager()
	tokens := store.NewInMemoryTokenStore()
	deviceCodes := store.NewInMemoryDeviceCodeManager()
	parRequests := store.NewInMemoryPARStore()

	resourceServers := store.NewInMemoryResourceServerStore()
	resourceServers.AddServer(&models.ResourceServer{
		Username: "resource-1",
		Password: "resource-1-secret",
	})

	tokenManager, err := buildTokenManager(cfg, tokens)
	if err != nil {
		log.Fatalf("Failed to build token manager: %v", err)
	}

	srv, err := server.New(server.Options{
		Config:          cfg,
		Clients:         clients,
		Codes:           codes,
		Tokens:          tokenManager,
		DeviceCodes:     deviceCodes,
		ResourceServers: resourceServers,
		Metrics:         recorder,
		Extensions:      buildExtensions(cfg, parRequests, clients),
	})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	setupGinMode(cfg)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode, // Lax mode required for OAuth redirects
	})
	r.Use(sessions.Sessions("oauth_session", sessionStore))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		log.Printf("Prometheus metrics enabled at /metrics")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		log.Printf("Listening on %s", cfg.ServerAddr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	<-m.Done()
}

func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

// buildTokenManager selects opaque or JWT tokens from configuration.
func buildTokenManager(cfg *config.Config, tokens store.TokenStore) (token.Manager, error) {
	if cfg.TokenFormat == config.TokenFormatJWT {
		key, err := token.NewHMACKey("primary", []byte(cfg.JWTSecret))
		if err != nil {
			return nil, err
		}
		keys := token.NewKeyCollection(key)
		return token.NewJWTManager(keys, cfg.BaseURL, tokens,
			cfg.AccessTokenExpiration, cfg.RefreshTokenExpiration), nil
	}
	return token.NewOpaqueManager(tokens, cfg.AccessTokenExpiration, cfg.RefreshTokenExpiration), nil
}

func buildExtensions(
	cfg *config.Config,
	parRequests store.PushedAuthorizationRequestManager,
	clients store.ClientRetriever,
) []extension.OAuthExtension {
	clientValidator := validator.NewClientValidator(
		clients, validator.NewScopeValidator(cfg.ValidScopes), cfg.IsProduction(),
	)
	return []extension.OAuthExtension{
		extension.NewPARExtension(parRequests, clientValidator, cfg),
		extension.NewRARExtension(nil, cfg.MaxAuthorizationDetails, true),
		extension.NewDPoPExtension(cfg),
	}
}

// registerDemoClients seeds a public and a confidential client so the
// flows can be exercised out of the box.
func registerDemoClients(clients *store.InMemoryClientStore) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte("demo-secret"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := clients.RegisterClient(&models.OAuthClient{
		ClientID:         "demo-public",
		RedirectURIs:     []string{"http://localhost:9090/callback"},
		ValidScopes:      []string{"read", "write"},
		Confidential:     false,
		AllowedGrantType: models.GrantTypeAuthorization,
	}); err != nil {
		return err
	}

	return clients.RegisterClient(&models.OAuthClient{
		ClientID:         "demo-confidential",
		ClientSecret:     string(hashed),
		ValidScopes:      []string{"read", "write"},
		Confidential:     true,
		AllowedGrantType: models.GrantTypeClientCredentials,
	})
}
