package domain

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is sent to the chat endpoint.
type ChatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
}

// ChatResponse is returned by the chat endpoint.
type ChatResponse struct {
	Response            string        `json:"response"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
}
