package app

import (
	"fmt"

	grantHTTP "github.com/allisson/recordvault/internal/grant/http"
	grantRepository "github.com/allisson/recordvault/internal/grant/repository"
	grantUseCase "github.com/allisson/recordvault/internal/grant/usecase"
	"github.com/allisson/recordvault/internal/ledger"
	revocationUseCase "github.com/allisson/recordvault/internal/revocation/usecase"
)

// GrantRepository returns the grant repository for the configured driver.
func (c *Container) GrantRepository() (grantUseCase.GrantRepository, error) {
	var err error
	c.grantRepoInit.Do(func() {
		c.grantRepo, err = c.initGrantRepository()
		if err != nil {
			c.initErrors["grantRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["grantRepo"]; exists {
		return nil, storedErr
	}
	return c.grantRepo, nil
}

// AccessGrantRegistry returns the registry of who holds which key version.
func (c *Container) AccessGrantRegistry() (grantUseCase.AccessGrantRegistry, error) {
	var err error
	c.grantRegistryInit.Do(func() {
		c.grantRegistry, err = c.initAccessGrantRegistry()
		if err != nil {
			c.initErrors["grantRegistry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["grantRegistry"]; exists {
		return nil, storedErr
	}
	return c.grantRegistry, nil
}

// GrantUseCase returns the grant use case.
func (c *Container) GrantUseCase() (grantUseCase.GrantUseCase, error) {
	var err error
	c.grantUseCaseInit.Do(func() {
		c.grantUseCase, err = c.initGrantUseCase()
		if err != nil {
			c.initErrors["grantUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["grantUseCase"]; exists {
		return nil, storedErr
	}
	return c.grantUseCase, nil
}

// Ledger returns the atomic committer used by revocations.
func (c *Container) Ledger() (*ledger.Ledger, error) {
	var err error
	c.ledgerInit.Do(func() {
		c.ledger, err = c.initLedger()
		if err != nil {
			c.initErrors["ledger"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledger"]; exists {
		return nil, storedErr
	}
	return c.ledger, nil
}

// RevocationCoordinator returns the revocation coordinator, decorated with metrics.
func (c *Container) RevocationCoordinator() (revocationUseCase.RevocationCoordinator, error) {
	var err error
	c.revocationCoordinatorInit.Do(func() {
		c.revocationCoordinator, err = c.initRevocationCoordinator()
		if err != nil {
			c.initErrors["revocationCoordinator"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["revocationCoordinator"]; exists {
		return nil, storedErr
	}
	return c.revocationCoordinator, nil
}

// GrantHandler returns the HTTP handler for grant endpoints.
func (c *Container) GrantHandler() (*grantHTTP.GrantHandler, error) {
	var err error
	c.grantHandlerInit.Do(func() {
		c.grantHandler, err = c.initGrantHandler()
		if err != nil {
			c.initErrors["grantHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["grantHandler"]; exists {
		return nil, storedErr
	}
	return c.grantHandler, nil
}

func (c *Container) initGrantRepository() (grantUseCase.GrantRepository, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore().Grants(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for grant repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return grantRepository.NewMySQLGrantRepository(db), nil
	case "postgres":
		return grantRepository.NewPostgreSQLGrantRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAccessGrantRegistry() (grantUseCase.AccessGrantRegistry, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for grant registry: %w", err)
	}

	repo, err := c.GrantRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant repository for grant registry: %w", err)
	}

	return grantUseCase.NewAccessGrantRegistry(txManager, repo), nil
}

func (c *Container) initGrantUseCase() (grantUseCase.GrantUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for grant use case: %w", err)
	}

	registry, err := c.AccessGrantRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant registry for grant use case: %w", err)
	}

	users, err := c.UserRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user repository for grant use case: %w", err)
	}

	secretKeys, err := c.SecretKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret key manager for grant use case: %w", err)
	}

	keyPairs, err := c.KeyPairStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get keypair store for grant use case: %w", err)
	}

	return grantUseCase.NewGrantUseCase(txManager, registry, users, secretKeys, keyPairs, c.KeyWrapper()), nil
}

func (c *Container) initLedger() (*ledger.Ledger, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for ledger: %w", err)
	}

	secretKeys, err := c.SecretKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret key manager for ledger: %w", err)
	}

	registry, err := c.AccessGrantRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant registry for ledger: %w", err)
	}

	records, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for ledger: %w", err)
	}

	return ledger.New(txManager, secretKeys, registry, records), nil
}

func (c *Container) initRevocationCoordinator() (revocationUseCase.RevocationCoordinator, error) {
	secretKeys, err := c.SecretKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret key manager for revocation coordinator: %w", err)
	}

	keyPairs, err := c.KeyPairStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get keypair store for revocation coordinator: %w", err)
	}

	registry, err := c.AccessGrantRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant registry for revocation coordinator: %w", err)
	}

	records, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for revocation coordinator: %w", err)
	}

	committer, err := c.Ledger()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for revocation coordinator: %w", err)
	}

	blobs, err := c.BlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get blob store for revocation coordinator: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for revocation coordinator: %w", err)
	}

	coordinator := revocationUseCase.NewRevocationCoordinator(
		secretKeys,
		keyPairs,
		registry,
		records,
		committer,
		c.CipherEngine(),
		c.SignatureEngine(),
		c.KeyWrapper(),
		blobs,
		c.IntegrityVerifier(),
		revocationUseCase.Config{Concurrency: c.config.RevocationConcurrency},
		c.Logger(),
	)
	return revocationUseCase.NewRevocationCoordinatorWithMetrics(coordinator, businessMetrics), nil
}

func (c *Container) initGrantHandler() (*grantHTTP.GrantHandler, error) {
	grants, err := c.GrantUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant use case for grant handler: %w", err)
	}

	coordinator, err := c.RevocationCoordinator()
	if err != nil {
		return nil, fmt.Errorf("failed to get revocation coordinator for grant handler: %w", err)
	}

	return grantHTTP.NewGrantHandler(grants, coordinator, c.Logger()), nil
}
