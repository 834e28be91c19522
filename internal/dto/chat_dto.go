package dto

// ChatRequest is a doubt chat message.
type ChatRequest struct {
	Message      string   `json:"message" validate:"required,max=4000"`
	SessionID    string   `json:"session_id" validate:"omitempty,max=128"`
	Language     string   `json:"language" validate:"omitempty,len=2"`
	Temperature  *float64 `json:"temperature"`
	MaxNewTokens *int     `json:"max_new_tokens"`
}

// DoubtChatRequest is a chat message asked from inside a lesson section.
type DoubtChatRequest struct {
	ChatRequest
	Grade     string `json:"grade" validate:"required,max=64"`
	Subject   string `json:"subject" validate:"required,max=64"`
	LessonID  string `json:"lesson_id" validate:"required,max=128"`
	SectionID string `json:"section_id" validate:"omitempty,max=128"`
}

// ChatMetadata describes how a reply was produced.
type ChatMetadata struct {
	Model           string  `json:"model"`
	Language        string  `json:"language"`
	GenerationTime  float64 `json:"generation_time"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	HistoryTurns    int     `json:"history_turns"`
}

// ChatResponse is the reply to a chat message.
type ChatResponse struct {
	SessionID string       `json:"session_id"`
	Response  string       `json:"response"`
	Metadata  ChatMetadata `json:"metadata"`
}

// ChatStreamEvent is one streamed chat frame, over SSE or websocket.
type ChatStreamEvent struct {
	Status       string  `json:"status"`
	SessionID    string  `json:"session_id,omitempty"`
	Chunk        string  `json:"chunk,omitempty"`
	FullResponse string  `json:"full_response,omitempty"`
	Message      string  `json:"message,omitempty"`
	Progress     float64 `json:"progress,omitempty"`
}

// ClearMemoryRequest drops the history of a session.
type ClearMemoryRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// LanguageResponse lists a supported chat language.
type LanguageResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// StatusResponse reports model readiness.
type StatusResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Busy     bool   `json:"busy"`
	Detail   string `json:"detail,omitempty"`
}
