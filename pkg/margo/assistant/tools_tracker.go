package assistant

import (
	"context"
)

// trackerFields are the task fields the model may set on create/update.
var trackerFields = []string{"content", "description", "due_string", "due_date", "due_datetime", "priority", "labels", "duration", "duration_unit"}

// registerTrackerTools exposes the task tracker.
func (t *Toolset) registerTrackerTools(reg *Registry) {
	reg.Register(Tool{
		Name:        "list_tasks",
		Description: "List open tasks from the tracker. The filter uses the tracker's query syntax, e.g. \"today | overdue\".",
		Example:     `{"filter": "today | overdue"}`,
		Handler:     t.listTasks,
	})
	reg.Register(Tool{
		Name:        "create_task",
		Description: "Create a task in the tracker.",
		Example:     `{"content": "Review notes", "due_string": "tomorrow 14:00", "priority": 3}`,
		Handler:     t.createTask,
	})
	reg.Register(Tool{
		Name:        "update_task",
		Description: "Update fields of an existing task.",
		Example:     `{"id": "12345", "due_string": "friday 09:00"}`,
		Handler:     t.updateTask,
	})
	reg.Register(Tool{
		Name:        "close_task",
		Description: "Mark a task as completed.",
		Example:     `{"id": "12345"}`,
		Handler:     t.closeTask,
	})
}

func (t *Toolset) listTasks(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	filter := optionalString(args, "filter")
	tasks, err := t.Tracker.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

func (t *Toolset) createTask(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	if _, err := stringArg(args, "content"); err != nil {
		return nil, err
	}
	task, err := t.Tracker.CreateTask(ctx, pickFields(args))
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "task": task}, nil
}

func (t *Toolset) updateTask(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	id, err := stringArg(args, "id")
	if err != nil {
		return nil, err
	}
	if err := t.Tracker.UpdateTask(ctx, id, pickFields(args)); err != nil {
		return nil, err
	}
	return map[string]any{"status": "updated", "id": id}, nil
}

func (t *Toolset) closeTask(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	id, err := stringArg(args, "id")
	if err != nil {
		return nil, err
	}
	if err := t.Tracker.CloseTask(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"status": "closed", "id": id}, nil
}

// pickFields keeps only the fields the tracker API accepts, so stray keys in
// the model's data object never reach the wire.
func pickFields(args map[string]any) map[string]any {
	fields := make(map[string]any)
	for _, key := range trackerFields {
		if v, ok := args[key]; ok {
			fields[key] = v
		}
	}
	return fields
}
