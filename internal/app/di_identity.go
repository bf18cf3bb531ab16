package app

import (
	"fmt"

	identityHTTP "github.com/allisson/recordvault/internal/identity/http"
	identityRepository "github.com/allisson/recordvault/internal/identity/repository"
	identityService "github.com/allisson/recordvault/internal/identity/service"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
)

// UserRepository returns the user repository for the configured driver.
func (c *Container) UserRepository() (identityUseCase.UserRepository, error) {
	var err error
	c.userRepoInit.Do(func() {
		c.userRepo, err = c.initUserRepository()
		if err != nil {
			c.initErrors["userRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["userRepo"]; exists {
		return nil, storedErr
	}
	return c.userRepo, nil
}

// ProofVerifier returns the identity proof verifier.
func (c *Container) ProofVerifier() (*identityService.ProofVerifier, error) {
	var err error
	c.proofVerifierInit.Do(func() {
		c.proofVerifier, err = c.initProofVerifier()
		if err != nil {
			c.initErrors["proofVerifier"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["proofVerifier"]; exists {
		return nil, storedErr
	}
	return c.proofVerifier, nil
}

// UserUseCase returns the user onboarding use case.
func (c *Container) UserUseCase() (identityUseCase.UserUseCase, error) {
	var err error
	c.userUseCaseInit.Do(func() {
		c.userUseCase, err = c.initUserUseCase()
		if err != nil {
			c.initErrors["userUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["userUseCase"]; exists {
		return nil, storedErr
	}
	return c.userUseCase, nil
}

// SessionUseCase returns the use case that opens sessions from identity proofs.
func (c *Container) SessionUseCase() (identityUseCase.SessionUseCase, error) {
	var err error
	c.sessionUseCaseInit.Do(func() {
		c.sessionUseCase, err = c.initSessionUseCase()
		if err != nil {
			c.initErrors["sessionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionUseCase"]; exists {
		return nil, storedErr
	}
	return c.sessionUseCase, nil
}

// UserHandler returns the HTTP handler for user endpoints.
func (c *Container) UserHandler() (*identityHTTP.UserHandler, error) {
	var err error
	c.userHandlerInit.Do(func() {
		c.userHandler, err = c.initUserHandler()
		if err != nil {
			c.initErrors["userHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["userHandler"]; exists {
		return nil, storedErr
	}
	return c.userHandler, nil
}

// initUserRepository creates the user repository based on the database driver.
func (c *Container) initUserRepository() (identityUseCase.UserRepository, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore().Users(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for user repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return identityRepository.NewMySQLUserRepository(db), nil
	case "postgres":
		return identityRepository.NewPostgreSQLUserRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initProofVerifier() (*identityService.ProofVerifier, error) {
	users, err := c.UserRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user repository for proof verifier: %w", err)
	}
	return identityService.NewProofVerifier(users, c.config.IdentityProofMaxAge), nil
}

func (c *Container) initUserUseCase() (identityUseCase.UserUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for user use case: %w", err)
	}

	users, err := c.UserRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user repository for user use case: %w", err)
	}

	keyPairs, err := c.KeyPairStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get keypair store for user use case: %w", err)
	}

	return identityUseCase.NewUserUseCase(txManager, users, keyPairs), nil
}

func (c *Container) initSessionUseCase() (identityUseCase.SessionUseCase, error) {
	users, err := c.UserRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user repository for session use case: %w", err)
	}

	keyPairs, err := c.KeyPairStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get keypair store for session use case: %w", err)
	}

	return identityUseCase.NewSessionUseCase(users, keyPairs), nil
}

func (c *Container) initUserHandler() (*identityHTTP.UserHandler, error) {
	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for user handler: %w", err)
	}
	return identityHTTP.NewUserHandler(userUseCase, c.Logger()), nil
}
