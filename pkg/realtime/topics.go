package realtime

const (
	TopicUsers         = "users"
	TopicMessages      = "messages"
	TopicAnnouncements = "announcements"
)

// TopicUser is the topic for a single member document.
func TopicUser(userID string) string { return "users/" + userID }

// TopicWorkoutLogs is the topic for one member's workout logs.
func TopicWorkoutLogs(userID string) string { return "workoutLogs/" + userID }

// TopicUserMessages is the topic for one member's message thread, covering
// both directions.
func TopicUserMessages(userID string) string { return "messages/" + userID }
