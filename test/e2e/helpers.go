//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/licitai/internal/api/handlers"
	"github.com/cloo-solutions/licitai/internal/cache"
	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/ingest"
	"github.com/cloo-solutions/licitai/internal/kv"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"github.com/cloo-solutions/licitai/internal/openai"
	"github.com/cloo-solutions/licitai/internal/repository"
	"github.com/cloo-solutions/licitai/internal/server"
	"github.com/cloo-solutions/licitai/internal/service"
	"github.com/cloo-solutions/licitai/internal/session"
	"github.com/cloo-solutions/licitai/internal/storage"
	"github.com/cloo-solutions/licitai/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"
)

const (
	testAdminToken = "e2e-admin-token"
	testBucket     = "licitai-e2e"
	throttleMarker = "saturar"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RedisC       *testutil.RedisContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	KV           *kv.Store
	S3Client     *storage.S3Client
	Model        *scriptedModel
	Ingest       *service.IngestService
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	redisC := testutil.NewRedisContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	store, err := kv.NewStore(kv.Config{Addrs: []string{redisC.Addr()}})
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          testBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RedisC:     redisC,
		RustFSC:    s3C,
		Pool:       pool,
		KV:         store,
		S3Client:   s3Client,
		Model:      &scriptedModel{},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.Ingest = service.NewIngestService(repository.NewTxRunner(pool, repository.DefaultTable), env.Model, zaptest.NewLogger(t))
	env.ServerURL, env.ServerCloser = env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.KV != nil {
		e.KV.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.RedisC != nil {
		e.RedisC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the licitai and licitaid binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "licitai-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"licitaid", "licitai"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunLicitai runs the licitai CLI with an isolated config directory.
func (e *E2ETestEnv) RunLicitai(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "licitai"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Stdin = strings.NewReader(input)
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+e.T.TempDir(),
		"HOME="+e.T.TempDir(),
		fmt.Sprintf("LICITAI_API_URL=%s", e.ServerURL),
		fmt.Sprintf("LICITAI_ADMIN_TOKEN=%s", testAdminToken),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunLicitaid runs the licitaid CLI.
func (e *E2ETestEnv) RunLicitaid(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "licitaid"), args...)
	cmd.Dir = e.T.TempDir()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// IngestCSV uploads content to object storage and loads it from there.
func (e *E2ETestEnv) IngestCSV(name, content string) service.IngestStats {
	uri, err := e.S3Client.PutObject(e.Ctx, "exports/"+name, "text/csv", strings.NewReader(content))
	if err != nil {
		e.T.Fatalf("failed to upload export: %v", err)
	}

	body, err := ingest.Open(e.Ctx, uri, e.S3Client)
	if err != nil {
		e.T.Fatalf("failed to open export: %v", err)
	}
	defer body.Close()

	reader, err := ingest.NewReaderFor(uri, body)
	if err != nil {
		e.T.Fatalf("failed to read export: %v", err)
	}
	defer reader.Close()

	stats, err := e.Ingest.Ingest(e.Ctx, reader, service.IngestOptions{BatchSize: 2})
	if err != nil {
		e.T.Fatalf("ingest failed: %v", err)
	}
	return stats
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer wires the assistant against the containers, with the model
// replaced by a scripted fake.
func (e *E2ETestEnv) startServer(port int) (string, func()) {
	log := zaptest.NewLogger(e.T)
	docs := repository.NewDocumentRepository(e.Pool, repository.DefaultTable)

	gateway := service.NewGateway(e.Model, nil, service.GatewayConfig{
		MaxAttempts:   3,
		ThrottleDelay: 10 * time.Millisecond,
	}, log)
	embedder := cache.NewCachedEmbedder(e.Model, e.KV, "fake-embedding", time.Hour, metrics.EmbeddingCache, log)

	schemaCache := service.NewSchemaCache(docs, log)
	retriever := service.NewHybridRetriever(
		service.NewExactMatcher(docs, schemaCache, log),
		service.NewVectorSearcher(docs, embedder, 0.45, 5, log),
		gateway, "narration", 4, log,
	)
	sqlAgent := service.NewSQLAgent(docs, schemaCache, gateway, retriever, service.SQLAgentConfig{
		TableName:      repository.DefaultTable,
		LogicModel:     "logic",
		NarrationModel: "narration",
	}, log)
	orchestrator := service.NewOrchestrator(
		service.NewRouter(gateway, "logic", log),
		sqlAgent,
		retriever,
		gateway,
		service.NewTimeContext(service.DefaultUTCOffsetHours),
		service.OrchestratorConfig{LogicModel: "logic", NarrationModel: "narration"},
		log,
	)

	sessions := session.NewRedisStore(e.KV, domain.HistoryWindow, time.Hour, log)
	router := server.NewRouter(server.RouterConfig{
		Logger:         log,
		AdminToken:     testAdminToken,
		ChatHandler:    handlers.NewChatHandler(orchestrator, sessions),
		SessionHandler: handlers.NewSessionHandler(sessions),
		SchemaHandler:  handlers.NewSchemaHandler(schemaCache),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// scriptedModel answers by recognising the prompt it was given. It also
// serves deterministic embeddings derived from the words of the text.
type scriptedModel struct {
	mu      sync.Mutex
	prompts []string
}

func (m *scriptedModel) Complete(_ context.Context, _ string, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, throttleMarker):
		return "", fmt.Errorf("%w: 429 RESOURCE_EXHAUSTED", domain.ErrThrottled)
	case strings.Contains(prompt, "ERES UN EXPERTO EN SQL") && strings.Contains(lower, "detalle"):
		return "No puedo expresar eso en SQL.", nil
	case strings.Contains(prompt, "ERES UN EXPERTO EN SQL"):
		return "```sql\nSELECT COUNT(*) AS count FROM documentos_dj WHERE metadata->>'estado de oferta' ILIKE '%ADJUDICAD%' AND metadata->>'estado de oferta' NOT ILIKE '%NO%';\n```", nil
	case strings.Contains(prompt, "Datos:"):
		return "NARRADO " + between(prompt, "Datos:", "\n"), nil
	case strings.Contains(prompt, "ANALISTA DE LICITACIONES"):
		return "EVIDENCIA " + between(prompt, "EVIDENCIA:", "PREGUNTA:"), nil
	case strings.Contains(prompt, "Router."):
		return "GENERAL", nil
	default:
		return "Hola, soy Analista IA.", nil
	}
}

func (m *scriptedModel) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return wordVector(text), nil
}

func (m *scriptedModel) GenerateDocumentEmbedding(_ context.Context, text string) ([]float32, error) {
	return wordVector(text), nil
}

// wordVector hashes each word into a bucket so texts sharing words land
// close to each other.
func wordVector(text string) []float32 {
	v := make([]float32, domain.EmbeddingDimensions)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;¿?¡!\"'()")
		if w == "" {
			continue
		}
		sum := sha256.Sum256([]byte(w))
		v[binary.BigEndian.Uint32(sum[:4])%uint32(len(v))] += 1
	}
	return openai.Normalize(v)
}

// between returns the whitespace-collapsed text between two markers.
func between(text, start, end string) string {
	idx := strings.Index(text, start)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(start):]
	if stop := strings.Index(rest, end); stop >= 0 {
		rest = rest[:stop]
	}
	return strings.Join(strings.Fields(rest), " ")
}
