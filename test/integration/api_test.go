// Package integration runs the HTTP API end to end against PostgreSQL and MySQL.
package integration

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/recordvault/internal/app"
	"github.com/allisson/recordvault/internal/config"
	grantDTO "github.com/allisson/recordvault/internal/grant/http/dto"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityDTO "github.com/allisson/recordvault/internal/identity/http/dto"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
	recordDTO "github.com/allisson/recordvault/internal/record/http/dto"
	"github.com/allisson/recordvault/internal/testutil"
)

// integrationTestContext holds the running API and the bootstrap admin.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	admin     testutil.Identity
	dbDriver  string
}

// makeRequest performs a request signed by as and returns the response and body.
// A zero Identity sends no proof headers.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	as testutil.Identity,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as.Private != nil {
		as.SignRequest(req)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// newIdentity generates an identity key for address. The user is not registered.
func newIdentity(t *testing.T, address string, role identityDomain.Role) testutil.Identity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testutil.Identity{Address: address, Role: role, Private: priv, Public: pub}
}

// register registers id through POST /v1/users as actor.
func (ctx *integrationTestContext) register(t *testing.T, actor, id testutil.Identity) {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/users", identityDTO.RegisterUserRequest{
		Address:           id.Address,
		Role:              id.Role.String(),
		Name:              "user " + id.Address,
		IdentityPublicKey: base64.StdEncoding.EncodeToString(id.Public),
	}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var profile identityDTO.ProfileResponse
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, id.Address, profile.Address)
	assert.Equal(t, id.Role.String(), profile.Role)
	assert.NotEmpty(t, profile.BoxPublicKey)
}

// upload stores content in owner's file as actor and returns the record id.
func (ctx *integrationTestContext) upload(t *testing.T, actor testutil.Identity, owner, filename string,
	content []byte) string {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/owners/"+owner+"/records",
		recordDTO.UploadRecordRequest{
			Filename:    filename,
			ContentType: "text/plain",
			Content:     content,
		}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var record recordDTO.RecordResponse
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Equal(t, owner, record.OwnerID)
	assert.Equal(t, actor.Address, record.CreatedBy)
	return record.ID
}

// read fetches a record as actor and returns the status and the decoded document.
func (ctx *integrationTestContext) read(t *testing.T, actor testutil.Identity,
	id string) (int, recordDTO.DocumentResponse) {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/records/"+id, nil, actor)
	var document recordDTO.DocumentResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(body, &document))
	}
	return resp.StatusCode, document
}

// setupIntegrationTest wires the container against a fresh database and starts the API.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		testutil.SkipIfNoPostgres(t)
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		testutil.SkipIfNoMySQL(t)
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	masterKey := make([]byte, 32)
	_, err := rand.Read(masterKey)
	require.NoError(t, err)

	cfg := &config.Config{
		ServerHost:            "localhost",
		ServerPort:            0,
		DBDriver:              dbDriver,
		DBConnectionString:    dsn,
		DBMaxOpenConnections:  10,
		DBMaxIdleConnections:  5,
		DBConnMaxLifetime:     time.Hour,
		LogLevel:              "error",
		MasterKeys:            fmt.Sprintf("test-key-1:%s", base64.StdEncoding.EncodeToString(masterKey)),
		ActiveMasterKeyID:     "test-key-1",
		SecretKeyAlgorithm:    "aes-gcm",
		BlobStoreDriver:       "gocloud",
		BlobStoreURL:          "mem://",
		RevocationConcurrency: 4,
		IdentityProofMaxAge:   5 * time.Minute,
		MaxUploadSize:         1 << 20,
	}
	container := app.NewContainer(cfg)

	admin := newIdentity(t, "admin-1", identityDomain.RoleAdmin)
	users, err := container.UserUseCase()
	require.NoError(t, err, "failed to build user use case")
	_, err = users.Bootstrap(context.Background(), identityUseCase.RegisterInput{
		Address:           admin.Address,
		Role:              identityDomain.RoleAdmin,
		Name:              "Admin",
		IdentityPublicKey: admin.Public,
	})
	require.NoError(t, err, "failed to bootstrap admin")

	server, err := container.HTTPServer()
	require.NoError(t, err, "failed to build HTTP server")
	ts := httptest.NewServer(server.GetHandler())

	t.Cleanup(func() {
		ts.Close()
		if err := container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown: %v", err)
		}
		testutil.TeardownDB(t, db)
	})

	return &integrationTestContext{
		container: container,
		db:        db,
		server:    ts,
		admin:     admin,
		dbDriver:  dbDriver,
	}
}

// TestIntegration_RecordLifecycle walks an owner's file from onboarding through a revocation
// and checks who can still read it afterwards.
func TestIntegration_RecordLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	for _, driver := range []string{"postgres", "mysql"} {
		t.Run(driver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, driver)

			doctor := newIdentity(t, "doctor-1", identityDomain.RoleGrantee)
			nurse := newIdentity(t, "nurse-1", identityDomain.RoleGrantee)
			patient := newIdentity(t, "patient-1", identityDomain.RoleOwner)
			stranger := newIdentity(t, "stranger-1", identityDomain.RoleGrantee)

			t.Run("health and readiness", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/health", nil, testutil.Identity{})
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				resp, _ = ctx.makeRequest(t, http.MethodGet, "/ready", nil, testutil.Identity{})
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			})

			t.Run("requests without a proof are rejected", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/users", nil, testutil.Identity{})
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/users", nil, stranger)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})

			ctx.register(t, ctx.admin, doctor)
			ctx.register(t, ctx.admin, nurse)
			ctx.register(t, ctx.admin, stranger)
			ctx.register(t, doctor, patient)

			t.Run("role rules apply to registration", func(t *testing.T) {
				other := newIdentity(t, "patient-2", identityDomain.RoleOwner)
				resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/users", identityDTO.RegisterUserRequest{
					Address:           other.Address,
					Role:              other.Role.String(),
					Name:              "other",
					IdentityPublicKey: base64.StdEncoding.EncodeToString(other.Public),
				}, patient)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			})

			t.Run("stats", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/users/stats", nil, ctx.admin)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				var stats identityDTO.UserStatsResponse
				require.NoError(t, json.Unmarshal(body, &stats))
				assert.Equal(t, int64(5), stats.Total)
			})

			t.Run("owner browses grantees and edits own profile", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/grantees", nil, patient)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				var grantees identityDTO.ListProfilesResponse
				require.NoError(t, json.Unmarshal(body, &grantees))
				assert.Len(t, grantees.Data, 3)

				resp, body = ctx.makeRequest(t, http.MethodPut, "/v1/users/"+patient.Address,
					identityDTO.UpdateUserRequest{Name: "Pat", Email: "pat@example.com"}, patient)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				var profile identityDTO.ProfileResponse
				require.NoError(t, json.Unmarshal(body, &profile))
				assert.Equal(t, "Pat", profile.Name)

				resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/grantees", nil, doctor)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			})

			labs := ctx.upload(t, patient, patient.Address, "labs.txt", []byte("hemoglobin 14.1"))

			for _, grantee := range []testutil.Identity{doctor, nurse} {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/grants",
					grantDTO.CreateGrantRequest{GranteeID: grantee.Address}, patient)
				require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
			}

			t.Run("grantees read through their grants", func(t *testing.T) {
				status, document := ctx.read(t, doctor, labs)
				require.Equal(t, http.StatusOK, status)
				assert.Equal(t, []byte("hemoglobin 14.1"), document.Content)
				assert.Equal(t, "verified", document.Verification)

				status, _ = ctx.read(t, stranger, labs)
				assert.Equal(t, http.StatusForbidden, status)
			})

			notes := ctx.upload(t, doctor, patient.Address, "notes.txt", []byte("follow up in two weeks"))

			t.Run("owner lists grants and records", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/grants", nil, patient)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				var grants grantDTO.ListGrantsResponse
				require.NoError(t, json.Unmarshal(body, &grants))
				assert.Len(t, grants.Data, 2)

				resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/owners/"+patient.Address+"/records", nil, patient)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				var records recordDTO.ListRecordsResponse
				require.NoError(t, json.Unmarshal(body, &records))
				assert.Len(t, records.Data, 2)

				resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/grants/owners", nil, nurse)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				var owners grantDTO.ListOwnersResponse
				require.NoError(t, json.Unmarshal(body, &owners))
				assert.Equal(t, []string{patient.Address}, owners.Data)
			})

			t.Run("revocation rotates the owner's key", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodDelete, "/v1/grants/"+doctor.Address, nil, patient)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var run grantDTO.RevocationResponse
				require.NoError(t, json.Unmarshal(body, &run))
				assert.Equal(t, "done", run.State)
				assert.Equal(t, uint64(1), run.FromVersion)
				assert.Equal(t, uint64(2), run.ToVersion)
				assert.Equal(t, 2, run.Records)
				assert.Equal(t, 1, run.Grantees)

				resp, _ = ctx.makeRequest(t, http.MethodDelete, "/v1/grants/"+doctor.Address, nil, patient)
				assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			})

			t.Run("revoked grantee loses access", func(t *testing.T) {
				for _, id := range []string{labs, notes} {
					status, _ := ctx.read(t, doctor, id)
					assert.Equal(t, http.StatusForbidden, status)
				}
			})

			t.Run("remaining readers see the same content", func(t *testing.T) {
				expected := map[string][]byte{
					labs:  []byte("hemoglobin 14.1"),
					notes: []byte("follow up in two weeks"),
				}
				for id, content := range expected {
					for _, reader := range []testutil.Identity{nurse, patient} {
						status, document := ctx.read(t, reader, id)
						require.Equal(t, http.StatusOK, status, "reader %s record %s", reader.Address, id)
						assert.Equal(t, content, document.Content)
						assert.Equal(t, "verified", document.Verification)
						assert.Equal(t, uint64(2), document.KeyVersion)
					}
				}
			})

			t.Run("remaining grantee can still upload", func(t *testing.T) {
				id := ctx.upload(t, nurse, patient.Address, "vitals.txt", []byte("bp 120/80"))
				status, document := ctx.read(t, patient, id)
				require.Equal(t, http.StatusOK, status)
				assert.Equal(t, []byte("bp 120/80"), document.Content)
			})
		})
	}
}
