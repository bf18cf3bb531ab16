package app

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoRepository "github.com/allisson/recordvault/internal/crypto/repository"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
)

// MasterKeyChain returns the master key chain built from MASTER_KEYS.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	var err error
	c.masterKeyChainInit.Do(func() {
		c.masterKeyChain, err = c.initMasterKeyChain()
		if err != nil {
			c.initErrors["masterKeyChain"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["masterKeyChain"]; exists {
		return nil, storedErr
	}
	return c.masterKeyChain, nil
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KeyManager returns the key manager service.
func (c *Container) KeyManager() cryptoService.KeyManager {
	c.keyManagerInit.Do(func() {
		c.keyManager = cryptoService.NewKeyManager(c.AEADManager())
	})
	return c.keyManager
}

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// CipherEngine returns the content cipher.
func (c *Container) CipherEngine() cryptoService.CipherEngine {
	c.cipherEngineInit.Do(func() {
		c.cipherEngine = cryptoService.NewCipherEngine(c.AEADManager())
	})
	return c.cipherEngine
}

// SignatureEngine returns the Ed25519 signer.
func (c *Container) SignatureEngine() cryptoService.SignatureEngine {
	c.signatureEngineInit.Do(func() {
		c.signatureEngine = cryptoService.NewSignatureEngine()
	})
	return c.signatureEngine
}

// KeyWrapper returns the sealed box key wrapper.
func (c *Container) KeyWrapper() cryptoService.KeyWrapper {
	c.keyWrapperInit.Do(func() {
		c.keyWrapper = cryptoService.NewKeyWrapper()
	})
	return c.keyWrapper
}

// KeyPairRepository returns the keypair repository for the configured driver.
func (c *Container) KeyPairRepository() (cryptoUseCase.KeyPairRepository, error) {
	var err error
	c.keyPairRepoInit.Do(func() {
		c.keyPairRepo, err = c.initKeyPairRepository()
		if err != nil {
			c.initErrors["keyPairRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyPairRepo"]; exists {
		return nil, storedErr
	}
	return c.keyPairRepo, nil
}

// SecretKeyRepository returns the secret key repository for the configured driver.
func (c *Container) SecretKeyRepository() (cryptoUseCase.SecretKeyRepository, error) {
	var err error
	c.secretKeyRepoInit.Do(func() {
		c.secretKeyRepo, err = c.initSecretKeyRepository()
		if err != nil {
			c.initErrors["secretKeyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretKeyRepo"]; exists {
		return nil, storedErr
	}
	return c.secretKeyRepo, nil
}

// KeyPairStore returns the use case owning users' sealed keypairs.
func (c *Container) KeyPairStore() (cryptoUseCase.KeyPairStore, error) {
	var err error
	c.keyPairStoreInit.Do(func() {
		c.keyPairStore, err = c.initKeyPairStore()
		if err != nil {
			c.initErrors["keyPairStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyPairStore"]; exists {
		return nil, storedErr
	}
	return c.keyPairStore, nil
}

// SecretKeyManager returns the use case owning owners' content keys.
func (c *Container) SecretKeyManager() (cryptoUseCase.SecretKeyManager, error) {
	var err error
	c.secretKeyManagerInit.Do(func() {
		c.secretKeyManager, err = c.initSecretKeyManager()
		if err != nil {
			c.initErrors["secretKeyManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretKeyManager"]; exists {
		return nil, storedErr
	}
	return c.secretKeyManager, nil
}

// initMasterKeyChain decodes MASTER_KEYS, decrypting each value through KMS when
// KMS_KEY_URI is set.
func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	ctx := context.Background()
	logger := c.Logger()

	var keeper cryptoDomain.KMSKeeper
	if c.config.KMSKeyURI != "" {
		var err error
		keeper, err = c.KMSService().OpenKeeper(ctx, c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open kms keeper: %w", err)
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Warn("failed to close kms keeper", slog.Any("error", closeErr))
			}
		}()
	}

	masterKeyChain, err := cryptoDomain.LoadMasterKeyChain(
		ctx,
		c.config.MasterKeys,
		c.config.ActiveMasterKeyID,
		keeper,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}

	logger.Info("master key chain loaded",
		slog.String("active_master_key_id", masterKeyChain.ActiveMasterKeyID()),
		slog.Bool("kms", keeper != nil),
		slog.String("kms_provider", c.config.KMSProvider),
	)
	return masterKeyChain, nil
}

// initKeyPairRepository creates the keypair repository based on the database driver.
func (c *Container) initKeyPairRepository() (cryptoUseCase.KeyPairRepository, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore().KeyPairs(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for keypair repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLKeyPairRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLKeyPairRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSecretKeyRepository creates the secret key repository based on the database driver.
func (c *Container) initSecretKeyRepository() (cryptoUseCase.SecretKeyRepository, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore().SecretKeys(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLSecretKeyRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLSecretKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initKeyPairStore creates the keypair use case with all its dependencies.
func (c *Container) initKeyPairStore() (cryptoUseCase.KeyPairStore, error) {
	alg, err := cryptoDomain.ParseAlgorithm(c.config.SecretKeyAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid SECRET_KEY_ALGORITHM %q: %w", c.config.SecretKeyAlgorithm, err)
	}

	repo, err := c.KeyPairRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get keypair repository for keypair store: %w", err)
	}

	proofVerifier, err := c.ProofVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get proof verifier for keypair store: %w", err)
	}

	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain for keypair store: %w", err)
	}

	return cryptoUseCase.NewKeyPairStore(repo, c.KeyManager(), proofVerifier, masterKeyChain, alg), nil
}

// initSecretKeyManager creates the secret key use case with all its dependencies.
func (c *Container) initSecretKeyManager() (cryptoUseCase.SecretKeyManager, error) {
	alg, err := cryptoDomain.ParseAlgorithm(c.config.SecretKeyAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid SECRET_KEY_ALGORITHM %q: %w", c.config.SecretKeyAlgorithm, err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for secret key manager: %w", err)
	}

	repo, err := c.SecretKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret key repository for secret key manager: %w", err)
	}

	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain for secret key manager: %w", err)
	}

	return cryptoUseCase.NewSecretKeyManager(txManager, repo, c.KeyManager(), masterKeyChain, alg), nil
}
