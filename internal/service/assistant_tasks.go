package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/windoze95/manas-api/internal/models"
)

const spokenDateLayout = "Monday, January 02"

func (s *AssistantService) handleAddTask(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	details, err := s.Text.ExtractTask(ctx, turn.Transcript, turn.History, turn.LocalNow())
	if err != nil {
		return nil, fmt.Errorf("extract task: %w", err)
	}
	if strings.TrimSpace(details.Title) == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "What task would you like me to add?")
	}

	in := TaskInput{Title: details.Title, Priority: details.Priority, DueDate: details.DueDate}
	// Drop extracted values the store would reject rather than failing the turn.
	if _, ok := models.ParseTaskPriority(in.Priority); !ok {
		in.Priority = ""
	}
	if _, err := parseDueDate(in.DueDate); err != nil {
		in.DueDate = ""
	}

	task, err := s.Tasks.CreateTask(turn.UserID, in)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've added '%s'", task.Title)
	if task.Priority != models.PriorityNone {
		fmt.Fprintf(&b, " with %s priority", task.Priority)
	}
	if task.DueDate != nil {
		fmt.Fprintf(&b, " due %s", task.DueDate.Format(spokenDateLayout))
	}
	b.WriteString(" to your task list.")

	return &HandlerResult{
		Message: b.String(),
		Data:    map[string]interface{}{"task": ToTaskResponse(task)},
	}, nil
}

func (s *AssistantService) handleCompleteTask(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	change, err := s.Text.ExtractTaskChange(ctx, turn.Transcript, turn.History, turn.LocalNow())
	if err != nil {
		return nil, fmt.Errorf("extract task reference: %w", err)
	}
	if strings.TrimSpace(change.TaskQuery) == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "Which task would you like to mark as complete?")
	}

	tasks, err := s.Tasks.PendingTasks(turn.UserID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &HandlerResult{
			Message: "You don't have any pending tasks.",
			Data:    map[string]interface{}{"tasks": []TaskResponse{}},
		}, nil
	}
	match := FindTask(tasks, change.TaskQuery)
	if match == nil {
		return nil, userErrorf(CodeNotFound, "I couldn't find a task matching '%s'.", change.TaskQuery)
	}

	task, err := s.Tasks.CompleteTask(turn.UserID, match.ID)
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: fmt.Sprintf("I've marked '%s' as complete.", task.Title),
		Data:    map[string]interface{}{"task": ToTaskResponse(task)},
	}, nil
}

func (s *AssistantService) handleUpdateTask(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	change, err := s.Text.ExtractTaskChange(ctx, turn.Transcript, turn.History, turn.LocalNow())
	if err != nil {
		return nil, fmt.Errorf("extract task change: %w", err)
	}
	if strings.TrimSpace(change.TaskQuery) == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "Which task would you like to update?")
	}

	tasks, err := s.Tasks.ListTasks(turn.UserID, "")
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &HandlerResult{
			Message: "You don't have any tasks.",
			Data:    map[string]interface{}{"tasks": []TaskResponse{}},
		}, nil
	}
	match := FindTask(tasks, change.TaskQuery)
	if match == nil {
		return nil, userErrorf(CodeNotFound, "I couldn't find a task matching '%s'.", change.TaskQuery)
	}

	var patch TaskPatch
	var changes []string
	if p := strings.TrimSpace(change.NewPriority); p != "" {
		patch.Priority = &p
		changes = append(changes, "priority to "+strings.ToLower(p))
	}
	if t := strings.TrimSpace(change.NewTitle); t != "" {
		patch.Title = &t
		changes = append(changes, fmt.Sprintf("title to '%s'", t))
	}
	if d := strings.TrimSpace(change.NewDueDate); d != "" {
		patch.DueDate = &d
		if due, err := parseDueDate(d); err == nil && due != nil {
			changes = append(changes, "due date to "+due.Format(spokenDateLayout))
		}
	}
	if st := strings.TrimSpace(change.NewStatus); st != "" {
		patch.Status = &st
		changes = append(changes, "status to "+strings.ToLower(st))
	}
	if patch.IsEmpty() {
		return nil, userErrorf(CodeNeedsMoreInfo, "What would you like to update for this task?")
	}

	originalTitle := match.Title
	task, err := s.Tasks.UpdateTask(turn.UserID, match.ID, patch)
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: fmt.Sprintf("I've updated '%s' - changed %s.", originalTitle, strings.Join(changes, " and ")),
		Data:    map[string]interface{}{"task": ToTaskResponse(task)},
	}, nil
}

func (s *AssistantService) handleDeleteTask(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	change, err := s.Text.ExtractTaskChange(ctx, turn.Transcript, turn.History, turn.LocalNow())
	if err != nil {
		return nil, fmt.Errorf("extract task reference: %w", err)
	}
	if strings.TrimSpace(change.TaskQuery) == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "Which task would you like to delete?")
	}

	tasks, err := s.Tasks.ListTasks(turn.UserID, "")
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &HandlerResult{Message: "You don't have any tasks to delete."}, nil
	}
	match := FindTask(tasks, change.TaskQuery)
	if match == nil {
		return nil, userErrorf(CodeNotFound, "I couldn't find a task matching '%s'.", change.TaskQuery)
	}

	if err := s.Tasks.DeleteTask(turn.UserID, match.ID); err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: fmt.Sprintf("I've deleted '%s' from your tasks.", match.Title),
		Data:    map[string]interface{}{"deleted_task": ToTaskResponse(match)},
	}, nil
}

// priorityFilter picks a priority named in the transcript, if any.
func priorityFilter(transcript string) models.TaskPriority {
	t := strings.ToLower(transcript)
	for _, p := range []models.TaskPriority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		if strings.Contains(t, string(p)+" priority") || strings.Contains(t, string(p)+"-priority") {
			return p
		}
	}
	return models.PriorityNone
}

func (s *AssistantService) handleListTasks(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	tasks, err := s.Tasks.PendingTasks(turn.UserID)
	if err != nil {
		return nil, err
	}

	filter := priorityFilter(turn.Transcript)
	if filter != models.PriorityNone {
		filtered := tasks[:0:0]
		for _, t := range tasks {
			if t.Priority == filter {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	data := map[string]interface{}{"tasks": ToTaskResponses(tasks)}
	if filter != models.PriorityNone {
		data["filter"] = string(filter)
	}

	if len(tasks) == 0 {
		msg := "You don't have any pending tasks."
		if filter != models.PriorityNone {
			msg = fmt.Sprintf("You don't have any %s priority tasks.", filter)
		}
		return &HandlerResult{Message: msg, Data: data}, nil
	}

	var b strings.Builder
	if filter != models.PriorityNone {
		fmt.Fprintf(&b, "You have %d %s priority task%s:", len(tasks), filter, plural(len(tasks)))
	} else {
		fmt.Fprintf(&b, "You have %d pending task%s:", len(tasks), plural(len(tasks)))
	}
	for _, t := range tasks {
		b.WriteString("\n- ")
		if filter == models.PriorityNone {
			b.WriteString(priorityPrefix(t.Priority))
		}
		b.WriteString(t.Title)
	}
	return &HandlerResult{Message: b.String(), Data: data}, nil
}

func priorityPrefix(p models.TaskPriority) string {
	if p == models.PriorityNone {
		return ""
	}
	return strings.ToUpper(string(p)) + ": "
}

func (s *AssistantService) handleTaskReminders(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	r, err := s.Tasks.Reminders(turn.UserID, turn.Location())
	if err != nil {
		return nil, err
	}
	return &HandlerResult{Message: formatReminders(r), Data: remindersData(r)}, nil
}

func remindersData(r *Reminders) map[string]interface{} {
	return map[string]interface{}{
		"overdue":     ToTaskResponses(r.Overdue),
		"due_today":   ToTaskResponses(r.DueToday),
		"due_soon":    ToTaskResponses(r.DueSoon),
		"no_due_date": ToTaskResponses(r.NoDueDate),
	}
}

func formatReminders(r *Reminders) string {
	if r.IsEmpty() {
		if n := len(r.NoDueDate); n > 0 {
			return fmt.Sprintf("You have %d pending task%s with no due dates.", n, plural(n))
		}
		return "You're all caught up! No tasks with upcoming due dates."
	}

	var b strings.Builder
	b.WriteString("Here's what you need to do:")
	if n := len(r.Overdue); n > 0 {
		fmt.Fprintf(&b, "\n\nOverdue (%d task%s):", n, plural(n))
		for i := range r.Overdue {
			t := &r.Overdue[i]
			days := r.DaysOverdue(t)
			fmt.Fprintf(&b, "\n- %s%s (%d day%s overdue)", priorityPrefix(t.Priority), t.Title, days, plural(days))
		}
	}
	if n := len(r.DueToday); n > 0 {
		fmt.Fprintf(&b, "\n\nDue Today (%d task%s):", n, plural(n))
		for _, t := range r.DueToday {
			fmt.Fprintf(&b, "\n- %s%s", priorityPrefix(t.Priority), t.Title)
		}
	}
	if n := len(r.DueSoon); n > 0 {
		fmt.Fprintf(&b, "\n\nDue Soon (%d task%s):", n, plural(n))
		for _, t := range r.DueSoon {
			fmt.Fprintf(&b, "\n- %s%s (due %s)", priorityPrefix(t.Priority), t.Title, t.DueDate.Format("Monday"))
		}
	}
	return b.String()
}
