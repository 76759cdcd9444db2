package di

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"FinScan/internal/domain/models"
	pkgcache "FinScan/pkg/cache"
	"FinScan/pkg/config"
	"FinScan/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.Default()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Storage.UploadDir = dir + "/uploads"
	cfg.Storage.ReportsDir = dir + "/reports"
	cfg.Storage.PlotsDir = dir + "/plots"
	return cfg
}

func TestInitializeAppWithSinksDisabled(t *testing.T) {
	app, err := InitializeApp(testConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestInitializeAppRejectsUnknownModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Algorithm = "svm"
	_, err := InitializeApp(cfg)
	assert.Error(t, err)
}

func TestProvideCache(t *testing.T) {
	cfg := testConfig(t)

	svc, err := ProvideCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, svc)
	assert.Nil(t, ProvideLabelCache(svc))

	cfg.Cache.Enabled = true
	svc, err = ProvideCache(cfg)
	require.NoError(t, err)
	defer svc.Close()
	assert.IsType(t, &pkgcache.MemoryCache{}, svc)
	assert.NotNil(t, ProvideLabelCache(svc))
}

func TestOptionalClientsDisabled(t *testing.T) {
	cfg := testConfig(t)

	producer, err := ProvideKafkaProducer(cfg, ProvideRegistry())
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.Nil(t, ProvideEventPublisher(cfg, producer, nil))

	client, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, client)

	store, err := ProvideAnomalyStore(cfg, client, nil)
	require.NoError(t, err)
	assert.Nil(t, store)
}

type downStore struct{}

func (downStore) Init(context.Context) error                               { return nil }
func (downStore) StoreBatch(context.Context, []models.AnomalyRecord) error { return nil }
func (downStore) Health(context.Context) error                             { return errors.New("ping: connection refused") }

func TestHTTPServerHealthFollowsStore(t *testing.T) {
	cfg := testConfig(t)
	handler := ProvideDetectHandler(cfg, nil, ProvideRateLimiter(cfg), logger.Nop())

	srv := ProvideHTTPServer(cfg, handler, nil, ProvideRegistry(), logger.Nop())
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = ProvideHTTPServer(cfg, handler, downStore{}, ProvideRegistry(), logger.Nop())
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
