// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/recordvault/internal/blobstore"
	"github.com/allisson/recordvault/internal/config"
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	"github.com/allisson/recordvault/internal/database"
	grantHTTP "github.com/allisson/recordvault/internal/grant/http"
	grantUseCase "github.com/allisson/recordvault/internal/grant/usecase"
	"github.com/allisson/recordvault/internal/http"
	identityHTTP "github.com/allisson/recordvault/internal/identity/http"
	identityService "github.com/allisson/recordvault/internal/identity/service"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
	"github.com/allisson/recordvault/internal/ledger"
	"github.com/allisson/recordvault/internal/ledger/memory"
	"github.com/allisson/recordvault/internal/metrics"
	recordHTTP "github.com/allisson/recordvault/internal/record/http"
	recordService "github.com/allisson/recordvault/internal/record/service"
	recordUseCase "github.com/allisson/recordvault/internal/record/usecase"
	revocationUseCase "github.com/allisson/recordvault/internal/revocation/usecase"
)

const driverMemory = "memory"

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// background is canceled by Shutdown; it bounds goroutines started by components.
	background context.Context
	cancel     context.CancelFunc

	// Infrastructure
	logger      *slog.Logger
	db          *sql.DB
	memoryStore *memory.Store
	blobStore   blobstore.BlobStore

	// Managers
	txManager database.TxManager

	// Crypto
	masterKeyChain   *cryptoDomain.MasterKeyChain
	aeadManager      cryptoService.AEADManager
	keyManager       cryptoService.KeyManager
	kmsService       cryptoService.KMSService
	cipherEngine     cryptoService.CipherEngine
	signatureEngine  cryptoService.SignatureEngine
	keyWrapper       cryptoService.KeyWrapper
	keyPairRepo      cryptoUseCase.KeyPairRepository
	secretKeyRepo    cryptoUseCase.SecretKeyRepository
	keyPairStore     cryptoUseCase.KeyPairStore
	secretKeyManager cryptoUseCase.SecretKeyManager

	// Identity
	userRepo       identityUseCase.UserRepository
	proofVerifier  *identityService.ProofVerifier
	userUseCase    identityUseCase.UserUseCase
	sessionUseCase identityUseCase.SessionUseCase

	// Records and grants
	recordRepo            recordUseCase.RecordRepository
	integrityVerifier     *recordService.IntegrityVerifier
	recordPipeline        recordUseCase.RecordPipeline
	grantRepo             grantUseCase.GrantRepository
	grantRegistry         grantUseCase.AccessGrantRegistry
	grantUseCase          grantUseCase.GrantUseCase
	ledger                *ledger.Ledger
	revocationCoordinator revocationUseCase.RevocationCoordinator

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Handlers and servers
	userHandler   *identityHTTP.UserHandler
	recordHandler *recordHTTP.RecordHandler
	grantHandler  *grantHTTP.GrantHandler
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	memoryStoreInit           sync.Once
	blobStoreInit             sync.Once
	txManagerInit             sync.Once
	masterKeyChainInit        sync.Once
	aeadManagerInit           sync.Once
	keyManagerInit            sync.Once
	kmsServiceInit            sync.Once
	cipherEngineInit          sync.Once
	signatureEngineInit       sync.Once
	keyWrapperInit            sync.Once
	keyPairRepoInit           sync.Once
	secretKeyRepoInit         sync.Once
	keyPairStoreInit          sync.Once
	secretKeyManagerInit      sync.Once
	userRepoInit              sync.Once
	proofVerifierInit         sync.Once
	userUseCaseInit           sync.Once
	sessionUseCaseInit        sync.Once
	recordRepoInit            sync.Once
	integrityVerifierInit     sync.Once
	recordPipelineInit        sync.Once
	grantRepoInit             sync.Once
	grantRegistryInit         sync.Once
	grantUseCaseInit          sync.Once
	ledgerInit                sync.Once
	revocationCoordinatorInit sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	userHandlerInit           sync.Once
	recordHandlerInit         sync.Once
	grantHandlerInit          sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	background, cancel := context.WithCancel(context.Background())
	return &Container{
		config:     cfg,
		background: background,
		cancel:     cancel,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// MemoryStore returns the in-memory ledger used when DB_DRIVER=memory.
func (c *Container) MemoryStore() *memory.Store {
	c.memoryStoreInit.Do(func() {
		c.memoryStore = memory.NewStore()
	})
	return c.memoryStore
}

// TxManager returns the transaction manager of the configured ledger backend.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// BlobStore returns the blob backend holding encrypted content.
func (c *Container) BlobStore() (blobstore.BlobStore, error) {
	var err error
	c.blobStoreInit.Do(func() {
		c.blobStore, err = c.initBlobStore()
		if err != nil {
			c.initErrors["blobStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["blobStore"]; exists {
		return nil, storedErr
	}
	return c.blobStore, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics are
// disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the API server with its router set up.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()

	var shutdownErrors []error

	if c.blobStore != nil {
		if err := c.blobStore.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("blob store close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.masterKeyChain != nil {
		c.masterKeyChain.Close()
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	if c.config.DBDriver == driverMemory {
		return nil, fmt.Errorf("no database connection with the %s driver", driverMemory)
	}

	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager returns the memory store itself for the memory driver and a SQL
// transaction manager otherwise.
func (c *Container) initTxManager() (database.TxManager, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// readinessChecker pings whichever ledger backend is configured.
func (c *Container) readinessChecker() (http.ReadinessChecker, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	return db, nil
}

// initBlobStore opens the configured blob backend.
func (c *Container) initBlobStore() (blobstore.BlobStore, error) {
	ctx := context.Background()

	switch c.config.BlobStoreDriver {
	case "gocloud":
		store, err := blobstore.OpenBucketStore(ctx, c.config.BlobStoreURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bucket store: %w", err)
		}
		return store, nil
	case "minio":
		store, err := blobstore.NewMinIOStore(ctx, blobstore.MinIOConfig{
			Endpoint:  c.config.MinIOEndpoint,
			AccessKey: c.config.MinIOAccessKey,
			SecretKey: c.config.MinIOSecretKey,
			Bucket:    c.config.MinIOBucket,
			UseSSL:    c.config.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open minio store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob store driver: %s", c.config.BlobStoreDriver)
	}
}

// initMetricsProvider creates the provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates business metrics on top of the provider.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the API server and mounts every handler.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	checker, err := c.readinessChecker()
	if err != nil {
		return nil, fmt.Errorf("failed to get readiness checker for http server: %w", err)
	}

	sessions, err := c.SessionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get session use case for http server: %w", err)
	}

	userHandler, err := c.UserHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get user handler for http server: %w", err)
	}

	recordHandler, err := c.RecordHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get record handler for http server: %w", err)
	}

	grantHandler, err := c.GrantHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(checker, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(c.background, c.config, sessions, http.Handlers{
		Users:   userHandler,
		Records: recordHandler,
		Grants:  grantHandler,
	}, metricsProvider)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
