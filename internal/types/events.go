package types

// Wire names of the live session protocol. Inbound and outbound events share
// one envelope; fields irrelevant to a given type are omitted.
const (
	EventSessionState            = "session-state"
	EventParticipantJoined       = "participant-joined"
	EventParticipantReconnected  = "participant-reconnected"
	EventParticipantDisconnected = "participant-disconnected"
	EventRatingsUpdated          = "ratings-updated"
	EventNotesUpdated            = "notes-updated"
	EventSessionEnded            = "session-ended"

	EventUpdateRatings = "update-ratings"
	EventUpdateNotes   = "update-notes"
)

// SessionEvent is the message envelope exchanged over a live connection.
type SessionEvent struct {
	Type        string          `json:"type"`
	Session     *TastingSession `json:"session,omitempty"`
	Participant *Participant    `json:"participant,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	Ratings     *TastingRatings `json:"ratings,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}
