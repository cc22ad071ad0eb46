package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teemow/caltodo/internal/todo"
)

// Operation names a Board action for error reporting.
type Operation string

const (
	OpLoad   Operation = "load"
	OpAdd    Operation = "add"
	OpDelete Operation = "delete"
	OpUpdate Operation = "update"
)

// failureMessages are the user-facing messages per operation. The cause
// is deliberately not distinguished.
var failureMessages = map[Operation]string{
	OpLoad:   "할 일 목록을 불러오지 못했습니다.",
	OpAdd:    "할 일을 추가하지 못했습니다.",
	OpDelete: "할 일을 삭제하지 못했습니다.",
	OpUpdate: "할 일을 업데이트하지 못했습니다.",
}

// ErrTaskNotFound is returned when a Board operation names an unknown task.
var ErrTaskNotFound = errors.New("task not found")

// OperationError is a failed Board operation. Error returns the localized
// message; the cause is kept for errors.Is and errors.As.
type OperationError struct {
	Op  Operation
	Err error
}

func (e *OperationError) Error() string {
	return failureMessages[e.Op]
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// API is the gateway surface a Board uses.
type API interface {
	FetchTodos(ctx context.Context) ([]todo.Task, error)
	CreateTodo(ctx context.Context, title string, at time.Time) (todo.Task, error)
	RemoveTodo(ctx context.Context, id string) error
}

// Board holds the task list shown to the user. Tasks are always sorted
// ascending by date-time. Completion lives only here and is reset by Load.
type Board struct {
	api API

	mu      sync.Mutex
	tasks   []todo.Task
	lastErr error
}

// NewBoard creates an empty Board backed by api.
func NewBoard(api API) *Board {
	return &Board{api: api}
}

// Load replaces the list with the gateway's upcoming tasks.
func (b *Board) Load(ctx context.Context) error {
	tasks, err := b.api.FetchTodos(ctx)
	if err != nil {
		return b.fail(OpLoad, err)
	}

	sorted := make([]todo.Task, len(tasks))
	copy(sorted, tasks)
	todo.SortByDateTime(sorted)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = sorted
	b.lastErr = nil
	return nil
}

// Add creates a task and inserts it at its date-time position without
// refetching the list.
func (b *Board) Add(ctx context.Context, title string, at time.Time) (todo.Task, error) {
	task, err := b.api.CreateTodo(ctx, title, at)
	if err != nil {
		return todo.Task{}, b.fail(OpAdd, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = todo.Insert(b.tasks, task)
	b.lastErr = nil
	return task, nil
}

// AddAt is Add with the date and clock time given separately, as entered
// in a form ("2006-01-02" and "15:04"), interpreted in loc.
func (b *Board) AddAt(ctx context.Context, title, date, clock string, loc *time.Location) (todo.Task, error) {
	at, err := time.ParseInLocation("2006-01-02T15:04", strings.TrimSpace(date)+"T"+strings.TrimSpace(clock), loc)
	if err != nil {
		return todo.Task{}, b.fail(OpAdd, fmt.Errorf("%w: %w", todo.ErrInvalidInput, err))
	}
	return b.Add(ctx, title, at)
}

// Delete removes a task from the calendar and from the list.
func (b *Board) Delete(ctx context.Context, id string) error {
	if err := b.api.RemoveTodo(ctx, id); err != nil {
		return b.fail(OpDelete, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = todo.Remove(b.tasks, id)
	b.lastErr = nil
	return nil
}

// Toggle flips the completion of the task with the given id. It makes no
// gateway call.
func (b *Board) Toggle(id string) (todo.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := todo.Find(b.tasks, id)
	if !ok {
		err := &OperationError{Op: OpUpdate, Err: fmt.Errorf("%w: %s", ErrTaskNotFound, id)}
		b.lastErr = err
		return todo.Task{}, err
	}

	toggled := todo.ToggleCompletion(t)
	next := make([]todo.Task, len(b.tasks))
	for i, cur := range b.tasks {
		if cur.ID == id {
			cur = toggled
		}
		next[i] = cur
	}
	b.tasks = next
	b.lastErr = nil
	return toggled, nil
}

// Tasks returns a snapshot of the list.
func (b *Board) Tasks() []todo.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]todo.Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Err returns the error of the last failed operation, cleared by the next
// successful one.
func (b *Board) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Board) fail(op Operation, err error) error {
	opErr := &OperationError{Op: op, Err: err}
	b.mu.Lock()
	b.lastErr = opErr
	b.mu.Unlock()
	return opErr
}
