package handlers_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Abdallah-Labiba/Azure-POC/internal/document"
	"github.com/Abdallah-Labiba/Azure-POC/internal/todo"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging/rabbitmq"
)

type memTodoStore struct {
	mu     sync.Mutex
	nextID int
	todos  map[int]todo.Todo
	err    error
}

func newMemTodoStore() *memTodoStore {
	return &memTodoStore{nextID: 1, todos: map[int]todo.Todo{}}
}

func (s *memTodoStore) sorted(keep func(todo.Todo) bool) []todo.Todo {
	out := []todo.Todo{}
	for _, t := range s.todos {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *memTodoStore) List(context.Context) ([]todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.sorted(func(todo.Todo) bool { return true }), nil
}

func (s *memTodoStore) Get(_ context.Context, id int) (*todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return nil, todo.ErrNotFound
	}
	return &t, nil
}

func (s *memTodoStore) Create(_ context.Context, t *todo.Todo) error {
	if err := t.Normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	s.nextID++
	t.CreatedAt = time.Now().UTC()
	s.todos[t.ID] = *t
	return nil
}

func (s *memTodoStore) Update(_ context.Context, t *todo.Todo) error {
	if err := t.Normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.todos[t.ID]
	if !ok {
		return todo.ErrNotFound
	}
	now := time.Now().UTC()
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = &now
	s.todos[t.ID] = *t
	return nil
}

func (s *memTodoStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[id]; !ok {
		return todo.ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

func (s *memTodoStore) ListByCategory(_ context.Context, category string) ([]todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(t todo.Todo) bool { return t.Category != nil && *t.Category == category }), nil
}

func (s *memTodoStore) ListPending(context.Context) ([]todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sorted(func(t todo.Todo) bool { return !t.Done })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *memTodoStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

type memDocumentStore struct {
	mu   sync.Mutex
	docs map[string]document.Document
}

func newMemDocumentStore() *memDocumentStore {
	return &memDocumentStore{docs: map[string]document.Document{}}
}

func (s *memDocumentStore) List(context.Context) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []document.Document{}
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

func (s *memDocumentStore) Get(_ context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return &d, nil
}

func (s *memDocumentStore) Create(_ context.Context, d *document.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = primitive.NewObjectID()
	d.CreatedAt = time.Now().UTC()
	s.docs[d.ID.Hex()] = *d
	return nil
}

func (s *memDocumentStore) Update(_ context.Context, id string, d *document.Document) (*document.Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	now := time.Now().UTC()
	existing.Name, existing.Content, existing.Metadata, existing.Tags = d.Name, d.Content, d.Metadata, d.Tags
	existing.UpdatedAt = &now
	s.docs[id] = existing
	return &existing, nil
}

func (s *memDocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return document.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *memDocumentStore) Search(_ context.Context, term string) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	term = strings.ToLower(term)
	out := []document.Document{}
	for _, d := range s.docs {
		if strings.Contains(strings.ToLower(d.Name), term) || strings.Contains(strings.ToLower(d.Content), term) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memDocumentStore) ListByTag(_ context.Context, tag string) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []document.Document{}
	for _, d := range s.docs {
		for _, t := range d.Tags {
			if t == tag {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

type published struct {
	destination string
	msg         amqp.Publishing
}

// recordingConn is an in-memory broker connection that keeps every publish.
type recordingConn struct {
	mu         sync.Mutex
	sent       []published
	channels   int
	channelErr error
	publishErr error
	// routes, when set, lists the only destinations the broker can route to.
	routes map[string]bool
	closed bool
}

func (c *recordingConn) Channel() (rabbitmq.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	c.channels++
	return &recordingChannel{conn: c}, nil
}

func (c *recordingConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.sent...)
}

func (c *recordingConn) channelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels
}

type recordingChannel struct {
	conn     *recordingConn
	confirms chan amqp.Confirmation
	returns  chan amqp.Return
	tag      uint64
}

func (ch *recordingChannel) PublishWithContext(_ context.Context, _, key string, mandatory, _ bool, msg amqp.Publishing) error {
	ch.conn.mu.Lock()
	defer ch.conn.mu.Unlock()
	if ch.conn.publishErr != nil {
		return ch.conn.publishErr
	}
	ch.tag++
	if ch.conn.routes != nil && !ch.conn.routes[key] {
		if mandatory && ch.returns != nil {
			ch.returns <- amqp.Return{ReplyCode: amqp.NoRoute, ReplyText: "NO_ROUTE", RoutingKey: key, MessageId: msg.MessageId}
		}
	} else {
		ch.conn.sent = append(ch.conn.sent, published{destination: key, msg: msg})
	}
	if ch.confirms != nil {
		ch.confirms <- amqp.Confirmation{DeliveryTag: ch.tag, Ack: true}
	}
	return nil
}

func (ch *recordingChannel) Confirm(bool) error { return nil }

func (ch *recordingChannel) NotifyPublish(c chan amqp.Confirmation) chan amqp.Confirmation {
	ch.confirms = c
	return c
}

func (ch *recordingChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	ch.returns = c
	return c
}

func (ch *recordingChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error { return c }

func (ch *recordingChannel) Qos(int, int, bool) error { return nil }

func (ch *recordingChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return make(chan amqp.Delivery), nil
}

func (ch *recordingChannel) Cancel(string, bool) error { return nil }

func (ch *recordingChannel) Close() error { return nil }
