package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"calbridge/internal/google"
	"calbridge/internal/instrumentation"
	"calbridge/internal/mcp/oauth"
	"calbridge/internal/server"
	"calbridge/internal/tools/calendar_tools"
)

// serveConfig holds the resolved serve configuration after flags and
// environment variables have been merged.
type serveConfig struct {
	Transport string
	Host      string
	Port      int

	// ServerURL is the public base URL clients use to reach this server.
	// Advertised as the protected resource identifier.
	ServerURL string

	TokenStore    string
	EncryptionKey []byte
	Valkey        oauth.ValkeyConfig

	MetricsEnabled bool
	MetricsAddr    string
}

func newServeCmd() *cobra.Command {
	var (
		transport      string
		host           string
		port           int
		serverURL      string
		tokenStore     string
		encryptionKey  string
		valkeyURL      string
		valkeyPassword string
		valkeyTLS      bool
		valkeyCAFile   string
		valkeyPrefix   string
		valkeyDB       int
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calendar MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Google Calendar
tools for AI assistants.

Supports two transport types:
  - streamable-http: HTTP transport with per-request Google OAuth (default)
  - stdio: Standard input/output with file-based token storage

HTTP transport authenticates every request by validating its Bearer token
against Google. GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required so
calendar clients can refresh tokens.

Token storage defaults to in-process memory. Use --token-store valkey to
share authenticated sessions across multiple server instances; combine
with --token-encryption-key to encrypt tokens at rest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := serveConfig{
				Transport:  transport,
				Host:       host,
				Port:       port,
				ServerURL:  serverURL,
				TokenStore: tokenStore,
				Valkey: oauth.ValkeyConfig{
					URL:        valkeyURL,
					Password:   valkeyPassword,
					TLSEnabled: valkeyTLS,
					TLSCAFile:  valkeyCAFile,
					KeyPrefix:  valkeyPrefix,
					DB:         valkeyDB,
				},
				MetricsEnabled: metricsEnabled,
				MetricsAddr:    metricsAddr,
			}
			applyServeEnv(cmd, &config)

			if encryptionKey == "" {
				encryptionKey = os.Getenv("TOKEN_ENCRYPTION_KEY")
			}
			if encryptionKey != "" {
				key, err := oauth.EncryptionKeyFromBase64(encryptionKey)
				if err != nil {
					return fmt.Errorf("invalid token encryption key: %w", err)
				}
				config.EncryptionKey = key
			}

			return runServe(config)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "streamable-http", "Transport type: streamable-http or stdio")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host to bind the HTTP server to. Can also use HOST env var.")
	cmd.Flags().IntVar(&port, "port", 8000, "Port for the HTTP server. Can also use PORT env var.")
	cmd.Flags().StringVar(&serverURL, "server-url", "", "Public base URL of this server (e.g. https://calbridge.example.com). Can also use SERVER_URL env var. Defaults to http://localhost:<port>.")
	cmd.Flags().StringVar(&tokenStore, "token-store", string(oauth.StorageMemory), "Token store backend: memory or valkey. Can also use TOKEN_STORE env var.")
	cmd.Flags().StringVar(&encryptionKey, "token-encryption-key", "", "AES-256 key for encrypting tokens at rest in the valkey store (32 bytes, base64); the memory store ignores it. Can also use TOKEN_ENCRYPTION_KEY env var. Generate with: openssl rand -base64 32")
	cmd.Flags().StringVar(&valkeyURL, "valkey-url", "", "Valkey server address (e.g. valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&valkeyPassword, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().BoolVar(&valkeyTLS, "valkey-tls", false, "Enable TLS for Valkey connections. Can also use VALKEY_TLS_ENABLED env var.")
	cmd.Flags().StringVar(&valkeyCAFile, "valkey-tls-ca-file", "", "CA certificate file for Valkey TLS verification. Can also use VALKEY_TLS_CA_FILE env var.")
	cmd.Flags().StringVar(&valkeyPrefix, "valkey-key-prefix", "", "Prefix for all Valkey keys. Can also use VALKEY_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&valkeyDB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// applyServeEnv fills in configuration from environment variables.
// Environment variables only apply when the flag was not explicitly set.
func applyServeEnv(cmd *cobra.Command, config *serveConfig) {
	if !cmd.Flags().Changed("host") {
		if host := os.Getenv("HOST"); host != "" {
			config.Host = host
		}
	}
	if !cmd.Flags().Changed("port") {
		if portStr := os.Getenv("PORT"); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil {
				config.Port = port
			}
		}
	}
	if !cmd.Flags().Changed("server-url") {
		if url := os.Getenv("SERVER_URL"); url != "" {
			config.ServerURL = url
		}
	}
	if !cmd.Flags().Changed("token-store") {
		if storeType := os.Getenv("TOKEN_STORE"); storeType != "" {
			config.TokenStore = storeType
		}
	}
	if !cmd.Flags().Changed("valkey-url") {
		if url := os.Getenv("VALKEY_URL"); url != "" {
			config.Valkey.URL = url
		}
	}
	if !cmd.Flags().Changed("valkey-password") {
		if password := os.Getenv("VALKEY_PASSWORD"); password != "" {
			config.Valkey.Password = password
		}
	}
	if !cmd.Flags().Changed("valkey-tls") {
		if os.Getenv("VALKEY_TLS_ENABLED") == "true" {
			config.Valkey.TLSEnabled = true
		}
	}
	if config.Valkey.TLSCAFile == "" {
		if caFile := os.Getenv("VALKEY_TLS_CA_FILE"); caFile != "" {
			config.Valkey.TLSCAFile = caFile
		}
	}
	if !cmd.Flags().Changed("valkey-key-prefix") {
		if prefix := os.Getenv("VALKEY_KEY_PREFIX"); prefix != "" {
			config.Valkey.KeyPrefix = prefix
		}
	}
	if !cmd.Flags().Changed("valkey-db") {
		if dbStr := os.Getenv("VALKEY_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				config.Valkey.DB = db
			}
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			config.MetricsEnabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.MetricsAddr = addr
		}
	}
}

// resolveServerURL determines the advertised resource URL. A bind address of
// 0.0.0.0 is not reachable from outside, so the fallback uses localhost.
func resolveServerURL(config serveConfig) string {
	if config.ServerURL != "" {
		return config.ServerURL
	}
	host := config.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, config.Port)
}

func runServe(config serveConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stdioMode := config.Transport == "stdio"

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil && !stdioMode {
			log.Printf("Error during instrumentation shutdown: %v", err)
		}
	}()

	// Metrics server runs on its own port; pointless for stdio
	var metricsServer *server.MetricsServer
	if !stdioMode && config.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    config.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("calbridge", version,
		mcpserver.WithToolCapabilities(true),
	)

	if stdioMode {
		return runStdioServer(shutdownCtx, mcpSrv, provider, instrConfig)
	}
	return runStreamableHTTPServer(shutdownCtx, mcpSrv, config, provider, instrConfig)
}

// runStdioServer serves MCP over stdin/stdout. Tokens come from per-account
// files written during a prior authorization, not from Bearer headers.
func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, provider *instrumentation.Provider, instrConfig instrumentation.Config) error {
	serverContext, err := server.NewServerContext(ctx, google.NewFileTokenProvider())
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, config serveConfig, provider *instrumentation.Provider, instrConfig instrumentation.Config) error {
	// Google OAuth client credentials are required so calendar clients can
	// refresh the access tokens users authenticate with
	if _, err := google.OAuthConfigFromEnv(); err != nil {
		return err
	}

	serverURL := resolveServerURL(config)
	if config.ServerURL == "" {
		log.Printf("No server URL configured, using auto-detected: %s", serverURL)
		log.Printf("For deployed instances, set --server-url flag or SERVER_URL env var")
	}

	store, err := createTokenStore(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing token store: %v", err)
		}
	}()

	oauthHandler, err := oauth.NewHandler(&oauth.Config{
		Resource: serverURL,
		Storage: oauth.StorageConfig{
			Type:          oauth.StorageType(config.TokenStore),
			Valkey:        config.Valkey,
			EncryptionKey: config.EncryptionKey,
		},
	}, store)
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	tokenProvider := oauth.NewTokenProvider(store)
	serverContext, err := server.NewServerContext(ctx, tokenProvider)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			log.Printf("Error during server context shutdown: %v", err)
		}
	}()

	if provider.Enabled() {
		oauthHandler.SetMetrics(provider.Metrics())
		tokenProvider.SetMetrics(provider.Metrics())
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	healthChecker := server.NewHealthChecker(serverContext)
	healthChecker.SetTokenStore(store)

	var sessionTracker *server.SessionTracker
	if provider.Enabled() {
		sessionTracker = server.NewSessionTracker(provider.Metrics())
	} else {
		sessionTracker = server.NewSessionTracker(nil)
	}

	httpServer, err := server.NewHTTPServer(mcpSrv, oauthHandler, healthChecker, sessionTracker)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	if provider.Enabled() {
		httpServer.SetMetrics(provider.Metrics())
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	fmt.Printf("Calendar MCP server with Google OAuth authentication starting on %s\n", addr)
	fmt.Printf("  MCP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  OAuth metadata: /.well-known/oauth-protected-resource\n")
	fmt.Printf("  Token store: %s\n", store.Backend())
	if config.MetricsEnabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", config.MetricsAddr)
	}
	fmt.Println("\nClients must authenticate with a Google OAuth token to access this server.")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// createTokenStore builds the token store backend selected by configuration.
func createTokenStore(ctx context.Context, config serveConfig) (oauth.TokenStore, error) {
	switch oauth.StorageType(config.TokenStore) {
	case oauth.StorageMemory, "":
		if len(config.EncryptionKey) > 0 {
			log.Printf("Warning: --token-encryption-key only applies to the valkey store; the memory store keeps tokens in process memory and ignores it")
		}
		return oauth.NewMemoryStore(), nil
	case oauth.StorageValkey:
		if config.Valkey.URL == "" {
			return nil, fmt.Errorf("valkey token store requires --valkey-url or VALKEY_URL")
		}
		store, err := oauth.NewValkeyStore(ctx, config.Valkey, config.EncryptionKey, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to valkey: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported token store type: %s (supported: memory, valkey)", config.TokenStore)
	}
}
