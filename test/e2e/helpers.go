//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	openailib "github.com/sashabaranov/go-openai"

	"github.com/convoflow-ai/convoflow/internal/api/handlers"
	"github.com/convoflow-ai/convoflow/internal/jobs"
	"github.com/convoflow-ai/convoflow/internal/repository"
	"github.com/convoflow-ai/convoflow/internal/server"
	"github.com/convoflow-ai/convoflow/internal/service"
	"github.com/convoflow-ai/convoflow/internal/storage"
	"github.com/convoflow-ai/convoflow/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	FileDir      string
	Worker       *jobs.Worker
	HTTPClient   *http.Client
}

// SetupE2EEnv starts a pgvector container, runs migrations, and boots the
// full server (with the index worker) against a local file store. No OpenAI
// key is involved: embedding is disabled, retrieval exercises the lexical
// path, and chat completions come from a canned completer.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	fileDir, err := os.MkdirTemp("", "convoflow-e2e-*")
	if err != nil {
		t.Fatalf("failed to create file store dir: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, worker := startServer(t, pool, fileDir, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		FileDir:      fileDir,
		Worker:       worker,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Worker != nil {
		e.Worker.Stop()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.FileDir != "" {
		os.RemoveAll(e.FileDir)
	}
}

// CreateBot creates a bot through the API and returns its id.
func (e *E2ETestEnv) CreateBot(name string) int64 {
	resp, err := e.Post("/bots", map[string]interface{}{
		"name":          name,
		"model":         "gpt-4o-mini",
		"system_prompt": "You answer from the provided knowledge.",
	})
	if err != nil {
		e.T.Fatalf("failed to create bot: %v", err)
	}

	var bot struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &bot); err != nil {
		e.T.Fatalf("failed to parse bot response: %v", err)
	}
	return bot.ID
}

// CreateDocument registers an inline-content document for a bot.
func (e *E2ETestEnv) CreateDocument(botID int64, title, content string) int64 {
	resp, err := e.Post(fmt.Sprintf("/bots/%d/documents", botID), map[string]string{
		"title":     title,
		"file_type": "txt",
		"content":   content,
	})
	if err != nil {
		e.T.Fatalf("failed to create document: %v", err)
	}

	var doc struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		e.T.Fatalf("failed to parse document response: %v", err)
	}
	return doc.ID
}

// WaitForDocument polls the document until the index worker settles its
// status, failing the test on timeout.
func (e *E2ETestEnv) WaitForDocument(documentID int64, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get(fmt.Sprintf("/documents/%d", documentID))
		if err == nil {
			var doc struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(resp.Data, &doc); err == nil && doc.Status != "uploaded" {
				return doc.Status
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %d was not processed within %v", documentID, timeout)
	return ""
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

// PostFile uploads a document source file as multipart form data.
func (e *E2ETestEnv) PostFile(path, filename, title string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func parseResponse(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
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

// startServer wires repositories, services, the index worker, and the router
// the same way the serve command does, minus OpenAI.
func startServer(t *testing.T, pool *pgxpool.Pool, fileDir string, port int) (string, func(), *jobs.Worker) {
	store, err := storage.NewLocalStore(fileDir)
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	botRepo := repository.NewBotRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIndexJobRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	locker := repository.NewIndexLocker(pool)

	indexerSvc := service.NewIndexerService(documentRepo, store, nil, vectorRepo, locker)
	indexWorker := jobs.NewWorker(jobs.NewIndexWorker(jobRepo, indexerSvc), 100*time.Millisecond)
	go indexWorker.Start(context.Background())

	retrieverSvc := service.NewRetrieverService(nil, vectorRepo, documentRepo)
	builder := service.NewContextBuilder(0)
	botSvc := service.NewBotService(botRepo)
	documentSvc := service.NewDocumentService(documentRepo, jobRepo, vectorRepo)
	chatSvc := service.NewChatService(botRepo, retrieverSvc, builder, &cannedCompleter{}, vectorRepo, nil)

	router := server.NewRouter(server.RouterConfig{
		BotHandler:      handlers.NewBotHandler(botSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc, store),
		SearchHandler:   handlers.NewSearchHandler(retrieverSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	closer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return serverURL, closer, indexWorker
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

// cannedCompleter stands in for the OpenAI chat API so chat turns can be
// exercised end to end without an API key. It echoes the last user message
// so tests can see what reached the model.
type cannedCompleter struct{}

func (c *cannedCompleter) Complete(ctx context.Context, model string, messages []openailib.ChatCompletionMessage, temperature float32) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openailib.ChatMessageRoleUser {
			return "canned reply to: " + messages[i].Content, nil
		}
	}
	return "canned reply", nil
}
