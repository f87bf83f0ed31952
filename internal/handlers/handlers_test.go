package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdallah-Labiba/Azure-POC/internal/handlers"
	"github.com/Abdallah-Labiba/Azure-POC/internal/notify"
	"github.com/Abdallah-Labiba/Azure-POC/internal/routes"
	"github.com/Abdallah-Labiba/Azure-POC/internal/todo"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging/rabbitmq"
)

type testServer struct {
	router *gin.Engine
	todos  *memTodoStore
	docs   *memDocumentStore
	conn   *recordingConn
	broker *rabbitmq.Client
}

func newTestServer(t *testing.T, checks ...handlers.Check) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	conn := &recordingConn{}
	broker := rabbitmq.NewClient(conn, log, rabbitmq.Options{Source: "data-service"})
	notifier := notify.New(broker, log)

	s := &testServer{
		router: gin.New(),
		todos:  newMemTodoStore(),
		docs:   newMemDocumentStore(),
		conn:   conn,
		broker: broker,
	}

	if len(checks) == 0 {
		checks = []handlers.Check{handlers.BrokerCheck("rabbitmq", broker.IsHealthy)}
	}

	routes.SetupRoutes(s.router, log, "data-service", prometheus.NewRegistry(), routes.Handlers{
		Health:       handlers.NewHealthHandler(log, "data-service", "1.0.0", checks...),
		Todos:        handlers.NewTodoHandler(log, s.todos, notifier),
		Documents:    handlers.NewDocumentHandler(log, s.docs, notifier),
		MessageQueue: handlers.NewMessageQueueHandler(log, broker),
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreateTodoPublishesOneNotification(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "Buy milk", "priority": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[todo.Todo](t, w)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, 2, created.Priority)
	assert.Equal(t, "/api/todos/1", w.Header().Get("Location"))

	sent := s.conn.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.TodoCreated, sent[0].destination)
	assert.Equal(t, notify.TodoCreated, sent[0].msg.Type)
	assert.Equal(t, "todo", sent[0].msg.Headers["entity"])
	assert.Equal(t, "1", sent[0].msg.Headers["entityId"])

	msg, err := messaging.Decode(sent[0].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "New todo created: Buy milk", msg.Content)
	assert.Equal(t, "data-service", msg.Source)
}

func TestCreateTodoValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing title", map[string]any{"done": true}},
		{"title too long", map[string]any{"title": string(make([]byte, 201))}},
		{"priority out of range", map[string]any{"title": "x", "priority": 9}},
		{"malformed json", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/todos", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, s.conn.messages())
	assert.Zero(t, s.todos.len())
}

func TestTodoNotificationFailureKeepsMutation(t *testing.T) {
	s := newTestServer(t)
	s.conn.publishErr = errors.New("broker unreachable")

	w := s.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "Persist me"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]string](t, w)
	assert.NotEmpty(t, body["error"])
	assert.Contains(t, body["details"], "broker unreachable")

	assert.Equal(t, 1, s.todos.len())
}

func TestGetTodo(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "A"}).Code)

	w := s.do(t, http.MethodGet, "/api/todos/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", decode[todo.Todo](t, w).Title)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/todos/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/todos/abc", nil).Code)
}

func TestUpdateTodo(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "Draft"}).Code)

	w := s.do(t, http.MethodPut, "/api/todos/1", map[string]any{"id": 2, "title": "Final"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/todos/42", map[string]any{"title": "Ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, s.conn.messages(), 1, "failed updates publish nothing")

	w = s.do(t, http.MethodPut, "/api/todos/1", map[string]any{"id": 1, "title": "Final", "done": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[todo.Todo](t, w)
	assert.True(t, updated.Done)
	assert.NotNil(t, updated.UpdatedAt)

	sent := s.conn.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, notify.TodoUpdated, sent[1].destination)
	msg, err := messaging.Decode(sent[1].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "Todo updated: Final", msg.Content)
}

func TestDeleteTodo(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "Temp"}).Code)

	w := s.do(t, http.MethodDelete, "/api/todos/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/todos/1", nil).Code)

	sent := s.conn.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, notify.TodoDeleted, sent[1].destination)
	msg, err := messaging.Decode(sent[1].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "Todo deleted with ID: 1", msg.Content)
}

func TestTodoQueries(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []map[string]any{
		{"title": "low", "priority": 5, "category": "home"},
		{"title": "urgent", "priority": 1, "category": "work"},
		{"title": "finished", "priority": 1, "done": true, "category": "work"},
	} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/todos", body).Code)
	}

	w := s.do(t, http.MethodGet, "/api/todos/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]todo.Todo](t, w)
	require.Len(t, pending, 2)
	assert.Equal(t, "urgent", pending[0].Title)
	assert.Equal(t, "low", pending[1].Title)

	w = s.do(t, http.MethodGet, "/api/todos/category/work", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]todo.Todo](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/todos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]todo.Todo](t, w)
	require.Len(t, all, 3)
	assert.Equal(t, "finished", all[0].Title)
}

func TestListTodosStoreFailure(t *testing.T) {
	s := newTestServer(t)
	s.todos.err = errors.New("connection reset")

	w := s.do(t, http.MethodGet, "/api/todos", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/documents", map[string]any{
		"name": "Design", "content": "Architecture notes", "tags": []string{"eng"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	id, _ := created["id"].(string)
	require.Len(t, id, 24)

	w = s.do(t, http.MethodGet, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/documents/search?term=ARCHITECTURE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/documents/tag/eng", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = s.do(t, http.MethodPut, "/api/documents/"+id, map[string]any{"name": "Design v2", "content": "More"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/documents/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	sent := s.conn.messages()
	require.Len(t, sent, 3)
	want := []struct{ event, content string }{
		{notify.DocumentCreated, "New document created: Design"},
		{notify.DocumentUpdated, "Document updated: Design v2"},
		{notify.DocumentDeleted, "Document deleted with ID: " + id},
	}
	for i, w := range want {
		assert.Equal(t, w.event, sent[i].destination)
		msg, err := messaging.Decode(sent[i].msg.Body)
		require.NoError(t, err)
		assert.Equal(t, w.content, msg.Content)
		assert.Equal(t, id, sent[i].msg.Headers["entityId"])
	}
}

func TestDocumentErrors(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/documents/search?term=%20", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/documents/search", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/documents", map[string]any{"name": "no content"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/documents/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/documents/missing", nil).Code)
	assert.Empty(t, s.conn.messages())
}

func TestMessageQueuePublish(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/messagequeue/publish", map[string]any{"content": "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]string](t, w)
	assert.NotEmpty(t, body["messageId"])

	sent := s.conn.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "default", sent[0].destination)
	assert.Equal(t, "info", sent[0].msg.Type)
	assert.Equal(t, body["messageId"], sent[0].msg.MessageId)

	w = s.do(t, http.MethodPost, "/api/messagequeue/publish", map[string]any{
		"content": "alert", "queueName": "alerts", "messageType": "warning",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sent = s.conn.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "alerts", sent[1].destination)
	assert.Equal(t, "warning", sent[1].msg.Type)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/messagequeue/publish", map[string]any{}).Code)
}

func TestMessageQueuePublishDetailed(t *testing.T) {
	const id = "0b6f8a3c-1d2e-4f5a-8b7c-9d0e1f2a3b4c"
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/messagequeue/publish/detailed?queueName=audit", map[string]any{
		"id": id, "content": "detailed", "type": "audit", "properties": map[string]any{"user": "42"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, decode[map[string]string](t, w)["messageId"])

	sent := s.conn.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "audit", sent[0].destination)
	assert.Equal(t, id, sent[0].msg.MessageId)
	assert.Equal(t, "42", sent[0].msg.Headers["user"])

	w = s.do(t, http.MethodPost, "/api/messagequeue/publish/detailed", map[string]any{"type": "audit"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/messagequeue/publish/detailed", map[string]any{
		"content": "c", "properties": map[string]any{"x-death": "1"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/messagequeue/publish/detailed", map[string]any{
		"id": "not-a-uuid", "content": "c",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, s.conn.messages(), 1)
}

func TestMessageQueuePublishBrokerUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.conn.channelErr = errors.New("connection refused")

	w := s.do(t, http.MethodPost, "/api/messagequeue/publish", map[string]any{"content": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPublishToUnprovisionedQueueFails(t *testing.T) {
	s := newTestServer(t)
	s.conn.routes = map[string]bool{"orders": true}

	w := s.do(t, http.MethodPost, "/api/messagequeue/publish", map[string]any{"content": "c", "queueName": "missing"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/messagequeue/publish", map[string]any{"content": "c", "queueName": "orders"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, s.conn.messages(), 1)

	w = s.do(t, http.MethodPost, "/api/todos", map[string]any{"title": "unannounced"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, s.todos.len())
}

func TestMessageQueueCreateQueueIsNoOp(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/messagequeue/queue/orders?durable=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Queue 'orders' created successfully", decode[map[string]string](t, w)["message"])
	assert.Zero(t, s.conn.channelCount())

	w = s.do(t, http.MethodPost, "/api/messagequeue/queue/orders?durable=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageQueueHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/messagequeue/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["healthy"])

	require.NoError(t, s.broker.Close(context.Background()))
	w = s.do(t, http.MethodGet, "/api/messagequeue/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["healthy"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.0.0", decode[map[string]any](t, w)["version"])

	w = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", decode[map[string]any](t, w)["status"])

	w = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessFailsWhenADependencyIsDown(t *testing.T) {
	s := newTestServer(t,
		handlers.Check{Name: "postgres", Probe: func(context.Context) error { return nil }},
		handlers.Check{Name: "mongodb", Probe: func(context.Context) error { return errors.New("no reachable servers") }},
	)

	w := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decode[map[string]any](t, w)
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OK", checks["postgres"])
	assert.Equal(t, "no reachable servers", checks["mongodb"])
}
