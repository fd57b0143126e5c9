package constant

// In-process bus topics carried by the watermill channel.
const (
	TopicRoundCompleted  = "round.completed"
	TopicSecurityFlagged = "security.flagged"
)

// WSRoundProgress is the websocket message type streamed to the session's
// listeners after every completed round.
const WSRoundProgress = "round_progress"
