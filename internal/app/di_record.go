package app

import (
	"fmt"

	recordHTTP "github.com/allisson/recordvault/internal/record/http"
	recordRepository "github.com/allisson/recordvault/internal/record/repository"
	recordService "github.com/allisson/recordvault/internal/record/service"
	recordUseCase "github.com/allisson/recordvault/internal/record/usecase"
)

// RecordRepository returns the record repository for the configured driver.
func (c *Container) RecordRepository() (recordUseCase.RecordRepository, error) {
	var err error
	c.recordRepoInit.Do(func() {
		c.recordRepo, err = c.initRecordRepository()
		if err != nil {
			c.initErrors["recordRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordRepo"]; exists {
		return nil, storedErr
	}
	return c.recordRepo, nil
}

// IntegrityVerifier returns the hash and signature checker shared by reads and
// revocations.
func (c *Container) IntegrityVerifier() *recordService.IntegrityVerifier {
	c.integrityVerifierInit.Do(func() {
		c.integrityVerifier = recordService.NewIntegrityVerifier(c.SignatureEngine())
	})
	return c.integrityVerifier
}

// RecordPipeline returns the upload and read pipeline, decorated with metrics.
func (c *Container) RecordPipeline() (recordUseCase.RecordPipeline, error) {
	var err error
	c.recordPipelineInit.Do(func() {
		c.recordPipeline, err = c.initRecordPipeline()
		if err != nil {
			c.initErrors["recordPipeline"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordPipeline"]; exists {
		return nil, storedErr
	}
	return c.recordPipeline, nil
}

// RecordHandler returns the HTTP handler for record endpoints.
func (c *Container) RecordHandler() (*recordHTTP.RecordHandler, error) {
	var err error
	c.recordHandlerInit.Do(func() {
		c.recordHandler, err = c.initRecordHandler()
		if err != nil {
			c.initErrors["recordHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordHandler"]; exists {
		return nil, storedErr
	}
	return c.recordHandler, nil
}

func (c *Container) initRecordRepository() (recordUseCase.RecordRepository, error) {
	if c.config.DBDriver == driverMemory {
		return c.MemoryStore().Records(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for record repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return recordRepository.NewMySQLRecordRepository(db), nil
	case "postgres":
		return recordRepository.NewPostgreSQLRecordRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRecordPipeline() (recordUseCase.RecordPipeline, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for record pipeline: %w", err)
	}

	records, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for record pipeline: %w", err)
	}

	registry, err := c.AccessGrantRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get grant registry for record pipeline: %w", err)
	}

	secretKeys, err := c.SecretKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret key manager for record pipeline: %w", err)
	}

	keyPairs, err := c.KeyPairStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get keypair store for record pipeline: %w", err)
	}

	blobs, err := c.BlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get blob store for record pipeline: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for record pipeline: %w", err)
	}

	pipeline := recordUseCase.NewRecordPipeline(
		txManager,
		records,
		registry,
		secretKeys,
		keyPairs,
		c.CipherEngine(),
		c.SignatureEngine(),
		c.KeyWrapper(),
		blobs,
		c.IntegrityVerifier(),
		recordUseCase.Config{MaxUploadSize: c.config.MaxUploadSize},
		c.Logger(),
	)
	return recordUseCase.NewRecordPipelineWithMetrics(pipeline, businessMetrics), nil
}

func (c *Container) initRecordHandler() (*recordHTTP.RecordHandler, error) {
	pipeline, err := c.RecordPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to get record pipeline for record handler: %w", err)
	}
	return recordHTTP.NewRecordHandler(pipeline, c.config.MaxUploadSize, c.Logger()), nil
}
