package models

// Document is an uploaded file held only for the duration of extraction.
type Document struct {
	Name string
	Data []byte
}

// Chunk is a bounded window of the token stream, identified by its position.
type Chunk struct {
	ChunkID int
	Tokens  []int
	Content string
}

// ChatTurn is one message of a session transcript.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type PromptResponse struct {
	Query   string
	Source  []string
	Content string
}
