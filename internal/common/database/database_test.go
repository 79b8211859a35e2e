package database

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal-color-workers/internal/common/config"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeTransport answers Elasticsearch requests by "METHOD /path".
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]int
	requests  []string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := req.Method + " " + req.URL.Path
	f.requests = append(f.requests, key)

	status, ok := f.responses[key]
	if !ok {
		status = http.StatusOK
	}
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Request:    req,
	}, nil
}

func createTestElasticsearch(t *testing.T, responses map[string]int) (*ElasticsearchClient, *fakeTransport) {
	transport := &fakeTransport{responses: responses}
	client, err := NewElasticsearch(config.ElasticsearchConfig{
		Addresses: []string{"http://elasticsearch:9200"},
	}, transport)
	require.NoError(t, err)
	return client, transport
}

// ==========================
// Postgres Tests
// ==========================

func TestPostgres_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS color_results").
		WillReturnResult(sqlmock.NewResult(0, 0))

	client := &PostgresClient{DB: db}
	require.NoError(t, client.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EnsureSchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS color_results").
		WillReturnError(assert.AnError)

	client := &PostgresClient{DB: db}
	err = client.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPostgres_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	client := &PostgresClient{DB: db}
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Redis Tests
// ==========================

func TestRedis_PingAndClose(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)

	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestRedis_PingFailure(t *testing.T) {
	client, err := NewRedis(config.RedisConfig{Address: "127.0.0.1:1"})
	require.NoError(t, err)
	defer client.Close()

	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRedis_MissingAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

// ==========================
// Elasticsearch Tests
// ==========================

func TestElasticsearch_Ping(t *testing.T) {
	client, transport := createTestElasticsearch(t, nil)

	require.NoError(t, client.Ping(context.Background()))
	assert.Contains(t, transport.requests, "HEAD /")
}

func TestElasticsearch_EnsureProductIndex(t *testing.T) {
	tests := []struct {
		name       string
		responses  map[string]int
		wantCreate bool
		wantErr    bool
	}{
		{
			name:      "index exists",
			responses: map[string]int{"HEAD /products": http.StatusOK},
		},
		{
			name:       "index missing",
			responses:  map[string]int{"HEAD /products": http.StatusNotFound},
			wantCreate: true,
		},
		{
			name: "create rejected",
			responses: map[string]int{
				"HEAD /products": http.StatusNotFound,
				"PUT /products":  http.StatusBadRequest,
			},
			wantCreate: true,
			wantErr:    true,
		},
		{
			name:      "cluster error",
			responses: map[string]int{"HEAD /products": http.StatusServiceUnavailable},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := createTestElasticsearch(t, tt.responses)

			err := client.EnsureProductIndex(context.Background(), "products")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantCreate {
				assert.Contains(t, transport.requests, "PUT /products")
			} else {
				assert.NotContains(t, transport.requests, "PUT /products")
			}
		})
	}
}
