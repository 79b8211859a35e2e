//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal-color-workers/internal/common/camunda"
	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/database"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/ensemble"
	"personal-color-workers/internal/models"
	"personal-color-workers/internal/providers"

	acp "personal-color-workers/internal/workers/color-analysis/analyze-color-parallel"
	scr "personal-color-workers/internal/workers/color-analysis/save-color-result"
	rp "personal-color-workers/internal/workers/recommendation/recommend-products"
)

const processID = "personal-color-analysis"

// 1x1 images; the fake models answer by image.
const (
	agreeImage    = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="
	disagreeImage = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="
)

var zeebeClient zbc.Client

func TestMain(m *testing.M) {
	var err error
	zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         envOr("ZEEBE_ADDRESS", "localhost:26500"),
		UsePlaintextConnection: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create Zeebe client: %v", err))
	}

	code := m.Run()

	zeebeClient.Close()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ==========================
// Fake vision models
// ==========================

// fakeModel agrees on Deep Autumn for agreeImage and gives a different
// answer per provider for anything else.
type fakeModel struct {
	provider ensemble.ProviderID
	calls    atomic.Int32
	agree    []byte
}

var disagreeing = map[ensemble.ProviderID]string{
	ensemble.ProviderGemini: "Light Spring",
	ensemble.ProviderOpenAI: "Cool Summer",
	ensemble.ProviderClaude: "Deep Winter",
}

func (f *fakeModel) Provider() ensemble.ProviderID { return f.provider }

func (f *fakeModel) Analyze(ctx context.Context, image []byte) (ensemble.RawColorResult, error) {
	f.calls.Add(1)
	colorType := disagreeing[f.provider]
	if bytes.Equal(image, f.agree) {
		colorType = "Deep Autumn"
	}
	return ensemble.RawColorResult{
		"personal_color_type": colorType,
		"confidence":          0.8,
		"reasoning":           "fixture answer from " + string(f.provider),
	}, nil
}

func (f *fakeModel) Judge(ctx context.Context, image []byte, candidates []ensemble.ColorAnalysisResult) (ensemble.RawColorResult, error) {
	return f.Analyze(ctx, image)
}

// ==========================
// Full process run
// ==========================

func TestPersonalColorProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Database.Postgres.Host = envOr("POSTGRES_HOST", "localhost")
	cfg.Database.Redis.Address = envOr("REDIS_ADDRESS", "localhost:6379")
	cfg.Database.Elasticsearch.Addresses = []string{envOr("ELASTICSEARCH_URL", "http://localhost:9200")}
	cfg.Database.Elasticsearch.ProductIndex = fmt.Sprintf("products-e2e-%d", time.Now().UnixNano())

	log := logger.NewTestLogger(t)

	// Services
	_, err = zeebeClient.NewTopologyCommand().Send(ctx)
	require.NoError(t, err, "Zeebe topology request failed")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	require.NoError(t, pg.EnsureSchema(ctx))

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
	require.NoError(t, err)
	require.NoError(t, es.Ping(ctx), "Elasticsearch ping failed")
	require.NoError(t, es.EnsureProductIndex(ctx, cfg.Database.Elasticsearch.ProductIndex))
	defer es.Client.Indices.Delete([]string{cfg.Database.Elasticsearch.ProductIndex})

	seedProducts(t, es, cfg.Database.Elasticsearch.ProductIndex)

	// Ensemble with cached fake models
	agreeBytes, err := base64.StdEncoding.DecodeString(agreeImage)
	require.NoError(t, err)

	var (
		fakes    []*fakeModel
		adapters []ensemble.ModelAdapter
	)
	for _, p := range ensemble.AllProviders() {
		f := &fakeModel{provider: p, agree: agreeBytes}
		fakes = append(fakes, f)
		require.NoError(t, rdb.Client.Del(ctx, providers.CacheKey(p, agreeBytes)).Err())
		adapters = append(adapters, providers.NewCachedAdapter(f, rdb.Client, time.Minute, log))
	}

	orchestrator, err := ensemble.NewOrchestrator(ensemble.DefaultConfig(), adapters, log)
	require.NoError(t, err)

	// Workers
	deployProcess(t, ctx)
	stopWorkers := startWorkers(t, cfg, orchestrator, pg, es, log)
	defer stopWorkers()

	t.Run("agreement saves and recommends", func(t *testing.T) {
		userID := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())
		vars := runProcess(t, ctx, map[string]interface{}{
			"image":             agreeImage,
			"aggregationMethod": "consensus",
			"userId":            userID,
		})

		assert.Equal(t, "Deep Autumn", vars["personalColorType"])
		assert.NotEmpty(t, vars["resultId"])
		assert.Equal(t, "personal_color_type", vars["matchedBy"])

		products, ok := vars["products"].([]interface{})
		require.True(t, ok)
		require.Len(t, products, 2)
		assert.Equal(t, "e2e-2", products[0].(map[string]interface{})["id"], "higher popularity first")

		var (
			colorType string
			season    string
		)
		err := pg.DB.QueryRowContext(ctx,
			`SELECT personal_color_type, season FROM color_results WHERE user_id = $1`, userID,
		).Scan(&colorType, &season)
		require.NoError(t, err)
		assert.Equal(t, "Deep Autumn", colorType)
		assert.Equal(t, "autumn", season)
	})

	t.Run("second run is served from the reply cache", func(t *testing.T) {
		before := make([]int32, len(fakes))
		for i, f := range fakes {
			before[i] = f.calls.Load()
		}

		vars := runProcess(t, ctx, map[string]interface{}{
			"image":  agreeImage,
			"userId": "e2e-cached",
		})
		assert.Equal(t, "Deep Autumn", vars["personalColorType"])

		for i, f := range fakes {
			assert.Equal(t, before[i], f.calls.Load(), "provider %s called again", f.provider)
		}
	})

	t.Run("disagreement ends at no-consensus", func(t *testing.T) {
		userID := fmt.Sprintf("e2e-disagree-%d", time.Now().UnixNano())
		vars := runProcess(t, ctx, map[string]interface{}{
			"image":             disagreeImage,
			"aggregationMethod": "consensus",
			"userId":            userID,
		})

		assert.NotContains(t, vars, "products")
		assert.NotContains(t, vars, "resultId")

		var n int
		require.NoError(t, pg.DB.QueryRowContext(ctx,
			`SELECT count(*) FROM color_results WHERE user_id = $1`, userID,
		).Scan(&n))
		assert.Zero(t, n)
	})
}

func seedProducts(t *testing.T, es *database.ElasticsearchClient, index string) {
	t.Helper()

	catalog := []models.Product{
		{ID: "e2e-1", Name: "Rust Lipstick", Brand: "Fixture", Category: "lipstick", PersonalColorTypes: []string{"Deep Autumn"}, Seasons: []string{"autumn"}, Price: 18, Popularity: 0.4},
		{ID: "e2e-2", Name: "Olive Scarf", Brand: "Fixture", Category: "scarf", PersonalColorTypes: []string{"Deep Autumn", "Soft Autumn"}, Seasons: []string{"autumn"}, Price: 35, Popularity: 0.9},
		{ID: "e2e-3", Name: "Icy Pink Blush", Brand: "Fixture", Category: "blush", PersonalColorTypes: []string{"Cool Summer"}, Seasons: []string{"summer"}, Price: 22, Popularity: 0.7},
	}

	for _, p := range catalog {
		body, err := json.Marshal(p)
		require.NoError(t, err)

		res, err := es.Client.Index(index, bytes.NewReader(body),
			es.Client.Index.WithDocumentID(p.ID),
			es.Client.Index.WithRefresh("true"),
		)
		require.NoError(t, err)
		res.Body.Close()
		require.False(t, res.IsError(), "index %s: %s", p.ID, res.Status())
	}
}

func deployProcess(t *testing.T, ctx context.Context) {
	t.Helper()

	for _, dir := range []string{"bpmn", "../bpmn", "../../bpmn"} {
		path := dir + "/" + processID + ".bpmn"
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_, err := zeebeClient.NewDeployResourceCommand().AddResourceFile(path).Send(ctx)
		require.NoError(t, err, "deploy %s", path)
		return
	}
	t.Fatalf("%s.bpmn not found", processID)
}

func startWorkers(t *testing.T, cfg *config.Config, orchestrator *ensemble.Orchestrator, pg *database.PostgresClient, es *database.ElasticsearchClient, log logger.Logger) func() {
	t.Helper()

	analyze, err := acp.NewHandler(acp.HandlerOptions{AppConfig: cfg, Analyzer: orchestrator, Logger: log})
	require.NoError(t, err)
	save, err := scr.NewHandler(scr.HandlerOptions{AppConfig: cfg, DB: pg.DB, Logger: log})
	require.NoError(t, err)
	recommend, err := rp.NewHandler(rp.HandlerOptions{AppConfig: cfg, Elasticsearch: es.Client, Logger: log})
	require.NoError(t, err)

	wc := config.WorkerConfig{Enabled: true, MaxJobsActive: 5, Timeout: 60000}
	workers := []*camunda.CamundaWorker{
		camunda.NewWorker(zeebeClient, acp.TaskType, wc, analyze, log),
		camunda.NewWorker(zeebeClient, scr.TaskType, wc, save, log),
		camunda.NewWorker(zeebeClient, rp.TaskType, wc, recommend, log),
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, w := range workers {
				w.Stop()
			}
		})
	}
}

func runProcess(t *testing.T, ctx context.Context, vars map[string]interface{}) map[string]interface{} {
	t.Helper()

	cmd, err := zeebeClient.NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromMap(vars)
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	res, err := cmd.WithResult().Send(runCtx)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(strings.NewReader(res.GetVariables())).Decode(&out))
	return out
}
