package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/models"
	"github.com/benvon/smart-docs/internal/queue"
	"github.com/benvon/smart-docs/internal/request"
	"github.com/benvon/smart-docs/internal/services/ai"
	"github.com/benvon/smart-docs/internal/store"
	"github.com/benvon/smart-docs/internal/telemetry"
)

// Tool names the selector may pick
const (
	ToolCreateFile = "create_file"
	ToolUpdateFile = "update_file"
	ToolListFiles  = "list_files"
)

// Tool result statuses
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Fallback content when the model cannot produce an entry
const (
	fallbackCellText = "New"
	fallbackTodoTask = "New Example Task"
	fallbackHabit    = "New Habit"
	metaCounterKey   = "meta_update_count"
)

// Tools describes the file tools to the selector
var Tools = []ai.ToolSpec{
	{
		Name: ToolCreateFile,
		Description: "Create a new file. Arguments: name (string), type (one of table, todolist, habit, journal), " +
			"user_request (optional string describing the content).",
	},
	{
		Name:        ToolUpdateFile,
		Description: "Add to an existing file found by a loose name. Arguments: name (string), user_request (string).",
	},
	{
		Name:        ToolListFiles,
		Description: "List the stored files. No arguments.",
	},
}

// ToolResult is what a tool hands back to the chat client. Failures are
// reported in the result, never as a request error.
type ToolResult struct {
	Status  string   `json:"status"`
	Path    string   `json:"path,omitempty"`
	File    string   `json:"file,omitempty"`
	Files   []string `json:"files,omitzero"`
	Content any      `json:"content,omitempty"`
	JobID   string   `json:"job_id,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func errorResult(msg string) *ToolResult {
	return &ToolResult{Status: StatusError, Error: msg}
}

// Args are the tool arguments chosen by the selector
type Args map[string]any

// String returns a trimmed string argument, "" when absent or null
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Dispatch runs the named tool
func (a *Agent) Dispatch(ctx context.Context, name string, args Args) *ToolResult {
	ctx, span := telemetry.StartSpan(ctx, "agent.tool."+name, attribute.String("tool", name))
	defer span.End()

	var result *ToolResult
	switch name {
	case ToolCreateFile:
		result = a.CreateFile(ctx, args)
	case ToolUpdateFile:
		result = a.UpdateFile(ctx, args)
	case ToolListFiles:
		result = a.ListFiles(ctx)
	default:
		result = errorResult("unknown tool: " + name)
	}

	metrics.ObserveToolCall(name, result.Status)
	span.SetAttributes(attribute.String("status", result.Status))
	if result.Status == StatusError {
		a.logger.Warn("tool_call_failed",
			zap.String("tool", name),
			logger.ErrString(result.Error),
			zap.String("request_id", request.RequestID(ctx)))
	}
	return result
}

// CreateFile writes a new document. The kind's default content is written
// when generation fails or is deferred to the worker. Kinds without a
// validator other than journal start out as todo lists.
func (a *Agent) CreateFile(ctx context.Context, args Args) *ToolResult {
	displayName := args.String("name")
	if displayName == "" {
		displayName = "Untitled"
	}

	kind := models.DocumentKind(strings.ToLower(args.String("type")))
	if kind == "" {
		kind = models.DocumentKindTodoList
	}
	userRequest := args.String("user_request")
	if userRequest == "" {
		userRequest = displayName
	}

	filename := store.SafeFilename(displayName)
	path, err := a.store.Path(filename)
	if err != nil {
		return errorResult(err.Error())
	}

	content := a.normalizer.DefaultDocument(kind, displayName)
	async := a.enqueuer != nil && a.generator.Enabled()

	if !async && a.generator.Enabled() {
		doc, err := a.generator.Document(ctx, displayName, kind, userRequest)
		if err != nil {
			a.logger.Warn("content_generation_failed",
				logger.File(filename),
				zap.String("kind", string(kind)),
				zap.Error(err),
				zap.String("request_id", request.RequestID(ctx)))
		} else {
			content = doc
		}
	}

	// create overwrites, like saving under an existing name
	if a.store.Exists(filename) {
		a.logger.Info("document_replaced",
			logger.File(filename),
			zap.String("request_id", request.RequestID(ctx)))
	}
	if err := a.store.Write(ctx, filename, content); err != nil {
		return errorResult(fmt.Sprintf("Write failed: %v", err))
	}

	result := &ToolResult{Status: StatusCreated, Path: path, File: filename, Content: content}
	if async {
		job := queue.NewGenerateContentJob(filename, displayName, kind, userRequest)
		job.RequestID = request.RequestID(ctx)
		if err := a.enqueuer.Enqueue(ctx, job); err != nil {
			a.logger.Error("content_job_enqueue_failed",
				logger.File(filename),
				zap.Error(err))
		} else {
			result.JobID = job.ID.String()
		}
	}
	return result
}

// UpdateFile appends one generated entry to the closest matching file
func (a *Agent) UpdateFile(ctx context.Context, args Args) *ToolResult {
	query := args.String("name")
	if query == "" {
		query = args.String("user_request")
	}
	match, err := a.store.FindBestMatch(ctx, query)
	if err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			return errorResult("No matching file found.")
		}
		return errorResult(err.Error())
	}

	userRequest := args.String("user_request")
	if userRequest == "" {
		userRequest = strings.TrimSuffix(query, store.FileExt)
	}

	updated, err := a.store.Update(ctx, match.Filename, func(current any) (any, error) {
		return a.appendEntry(ctx, current, userRequest)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResult(fmt.Sprintf("Failed to open file: %v", err))
		}
		return errorResult(fmt.Sprintf("Failed to write updated file: %v", err))
	}

	return &ToolResult{Status: StatusUpdated, File: match.Filename, Content: updated}
}

// appendEntry adds one entry to a stored document. Tables, todo lists and
// habit trackers are re-validated; other kinds only get their update
// counter bumped.
func (a *Agent) appendEntry(ctx context.Context, current any, userRequest string) (any, error) {
	kind := document.KindOf(current)
	switch kind {
	case models.DocumentKindTable, models.DocumentKindTodoList, models.DocumentKindHabit:
	default:
		obj, ok := current.(map[string]any)
		if !ok {
			return current, nil
		}
		count, _ := obj[metaCounterKey].(float64)
		obj[metaCounterKey] = count + 1
		return obj, nil
	}

	doc, err := a.normalizer.ValidateKind(kind, current)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.DocumentKindTable:
		row, err := a.generator.Row(ctx, doc.Columns, userRequest)
		if err != nil {
			a.logFallback(ctx, "update_row", err)
			row = a.normalizer.ExampleRow(doc.Columns, fallbackCellText)
		}
		doc.Values = append(doc.Values, row)
	case models.DocumentKindTodoList:
		item, err := a.generator.TodoItem(ctx, userRequest)
		if err != nil {
			a.logFallback(ctx, "update_todo", err)
			item = models.TodoItem{Task: fallbackTodoTask}
		}
		doc.Todos = append(doc.Todos, item)
	case models.DocumentKindHabit:
		item, err := a.generator.HabitItem(ctx, userRequest)
		if err != nil {
			a.logFallback(ctx, "update_habit", err)
			item = models.HabitItem{Habit: fallbackHabit}
		}
		doc.Habits = append(doc.Habits, item)
	}

	return a.normalizer.Validate(doc)
}

func (a *Agent) logFallback(ctx context.Context, operation string, err error) {
	a.logger.Warn("generation_fallback_used",
		zap.String("operation", operation),
		zap.Error(err),
		zap.String("request_id", request.RequestID(ctx)))
}

// ListFiles returns the stored document names
func (a *Agent) ListFiles(ctx context.Context) *ToolResult {
	files, err := a.store.List(ctx)
	if err != nil {
		return errorResult(err.Error())
	}
	return &ToolResult{Status: StatusOK, Files: files}
}
