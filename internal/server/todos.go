package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/logging"
	"github.com/teemow/caltodo/internal/todo"
)

// CreateTodoRequest is the body of POST /api/todos.
type CreateTodoRequest struct {
	Title    string `json:"title"`
	DateTime string `json:"dateTime"`
}

// DeleteTodoResponse is the body of a successful DELETE /api/todos/{id}.
type DeleteTodoResponse struct {
	ID string `json:"id"`
}

func (g *Gateway) todoService(cs *calendarSession) *todo.Service {
	return todo.NewService(cs, todo.Config{
		CalendarID: g.opts.CalendarID,
		Location:   g.opts.Location,
		Now:        g.opts.Now,
	})
}

func (g *Gateway) handleListTodos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := calendarSessionFrom(ctx)

	tasks, err := g.todoService(cs).List(ctx)
	if err != nil {
		g.todoFailed(w, r, cs, instrumentation.OperationList, err)
		return
	}

	g.metrics.RecordTodoOperation(ctx, instrumentation.OperationList, instrumentation.StatusSuccess)
	writeJSON(w, http.StatusOK, tasks)
}

func (g *Gateway) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := calendarSessionFrom(ctx)

	var req CreateTodoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		g.logger.Debug("Invalid create request body", logging.Err(err))
		writeError(w, ErrInvalidInput)
		return
	}

	task, err := g.todoService(cs).Create(ctx, req.Title, req.DateTime)
	if err != nil {
		g.todoFailed(w, r, cs, instrumentation.OperationCreate, err)
		return
	}

	g.metrics.RecordTodoOperation(ctx, instrumentation.OperationCreate, instrumentation.StatusSuccess)
	writeJSON(w, http.StatusCreated, task)
}

func (g *Gateway) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := calendarSessionFrom(ctx)
	id := r.PathValue("id")

	if err := g.todoService(cs).Delete(ctx, id); err != nil {
		g.todoFailed(w, r, cs, instrumentation.OperationDelete, err)
		return
	}

	g.metrics.RecordTodoOperation(ctx, instrumentation.OperationDelete, instrumentation.StatusSuccess)
	writeJSON(w, http.StatusOK, DeleteTodoResponse{ID: id})
}

// todoFailed logs the cause of a failed task operation and writes the
// stable client-facing error.
func (g *Gateway) todoFailed(w http.ResponseWriter, r *http.Request, cs *calendarSession, operation string, err error) {
	apiErr := todoError(operation, err)

	g.metrics.RecordTodoOperation(r.Context(), operation, instrumentation.StatusError)
	logger := logging.WithOperation(g.logger, "todo."+operation)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("Task operation failed",
			logging.SessionHash(cs.id),
			logging.RequestID(RequestIDFromContext(r.Context())),
			logging.Err(err))
	} else {
		logger.Info("Task operation rejected",
			logging.SessionHash(cs.id),
			slog.String("code", apiErr.Code),
			logging.Err(err))
	}

	if cs.Dropped() {
		g.cookies.Clear(w)
	}
	writeError(w, apiErr)
}
