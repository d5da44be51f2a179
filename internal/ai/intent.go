package ai

import "strings"

// Intent is one label from the assistant's closed intent set.
type Intent string

// Intent labels.
const (
	IntentGetWeather          Intent = "GET_WEATHER"
	IntentAddTask             Intent = "ADD_TASK"
	IntentCompleteTask        Intent = "COMPLETE_TASK"
	IntentUpdateTask          Intent = "UPDATE_TASK"
	IntentDeleteTask          Intent = "DELETE_TASK"
	IntentListTasks           Intent = "LIST_TASKS"
	IntentGetTaskReminders    Intent = "GET_TASK_REMINDERS"
	IntentDailySummary        Intent = "DAILY_SUMMARY"
	IntentCreateCalendarEvent Intent = "CREATE_CALENDAR_EVENT"
	IntentUpdateCalendarEvent Intent = "UPDATE_CALENDAR_EVENT"
	IntentDeleteCalendarEvent Intent = "DELETE_CALENDAR_EVENT"
	IntentListCalendarEvents  Intent = "LIST_CALENDAR_EVENTS"
	IntentCheckEmail          Intent = "CHECK_EMAIL"
	IntentSearchEmail         Intent = "SEARCH_EMAIL"
	IntentReadEmail           Intent = "READ_EMAIL"
	IntentAnalyzeEmail        Intent = "ANALYZE_EMAIL"
	IntentSearchRestaurants   Intent = "SEARCH_RESTAURANTS"
	IntentRememberThis        Intent = "REMEMBER_THIS"
	IntentRecallMemory        Intent = "RECALL_MEMORY"
	IntentForgetThis          Intent = "FORGET_THIS"
	IntentLearn               Intent = "LEARN"
	IntentGetNews             Intent = "GET_NEWS"
	IntentDocAnalysis         Intent = "DOC_ANALYSIS"
	IntentGeneralChat         Intent = "GENERAL_CHAT"
)

// ConfidenceThreshold is the minimum classifier confidence for a turn to be
// dispatched. Anything lower gets a clarification instead.
const ConfidenceThreshold = 0.6

// CardClarification is the card type of a low-confidence reply.
const CardClarification = "clarification"

// AllIntents lists every intent in classifier order.
var AllIntents = []Intent{
	IntentGetWeather,
	IntentAddTask,
	IntentCompleteTask,
	IntentUpdateTask,
	IntentDeleteTask,
	IntentListTasks,
	IntentGetTaskReminders,
	IntentDailySummary,
	IntentCreateCalendarEvent,
	IntentUpdateCalendarEvent,
	IntentDeleteCalendarEvent,
	IntentListCalendarEvents,
	IntentCheckEmail,
	IntentSearchEmail,
	IntentReadEmail,
	IntentAnalyzeEmail,
	IntentSearchRestaurants,
	IntentRememberThis,
	IntentRecallMemory,
	IntentForgetThis,
	IntentLearn,
	IntentGetNews,
	IntentDocAnalysis,
	IntentGeneralChat,
}

// IntentResult is the classifier's verdict for one transcript.
type IntentResult struct {
	Intent     Intent
	Confidence float64
}

// ParseIntent maps a label to an Intent, ignoring case and surrounding space.
// Unknown labels map to IntentGeneralChat with ok false.
func ParseIntent(s string) (Intent, bool) {
	label := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, i := range AllIntents {
		if i == label {
			return i, true
		}
	}
	return IntentGeneralChat, false
}

// String returns the label.
func (i Intent) String() string {
	return string(i)
}

// CardType returns the UI card the client renders for this intent.
func (i Intent) CardType() string {
	switch i {
	case IntentGetWeather:
		return "weather"
	case IntentAddTask:
		return "task_creation"
	case IntentCompleteTask:
		return "task_completion"
	case IntentUpdateTask:
		return "task_update"
	case IntentDeleteTask:
		return "task_deletion"
	case IntentListTasks:
		return "task_list"
	case IntentGetTaskReminders:
		return "task_reminders"
	case IntentDailySummary:
		return "summary"
	case IntentCreateCalendarEvent:
		return "calendar_create"
	case IntentUpdateCalendarEvent:
		return "calendar_update"
	case IntentDeleteCalendarEvent:
		return "calendar_delete"
	case IntentListCalendarEvents:
		return "calendar_list"
	case IntentCheckEmail:
		return "email"
	case IntentSearchEmail:
		return "email_search"
	case IntentReadEmail:
		return "email_thread"
	case IntentAnalyzeEmail:
		return "email_analysis"
	case IntentSearchRestaurants:
		return "restaurants"
	case IntentRememberThis, IntentRecallMemory, IntentForgetThis:
		return "memory"
	case IntentLearn:
		return "educational"
	case IntentGetNews:
		return "news"
	case IntentDocAnalysis:
		return "doc_analysis"
	default:
		return "conversation"
	}
}

// clampConfidence keeps a classifier score inside [0, 1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// intentLabels returns AllIntents as strings for tool schemas and prompts.
func intentLabels() []string {
	labels := make([]string, len(AllIntents))
	for i, intent := range AllIntents {
		labels[i] = string(intent)
	}
	return labels
}
