package entities

import "time"

// MemoryKind categorizes a memory fragment.
type MemoryKind string

const (
	MemoryConversation MemoryKind = "conversation"
	MemoryLore         MemoryKind = "lore"
	MemoryEvent        MemoryKind = "event"
)

// MemoryFragment is a piece of conversation history, lore, or narrative
// event text stored with an embedding for semantic retrieval. Retrieved
// fragments form the context bundle handed to the suggestion generator.
type MemoryFragment struct {
	ID      string     `json:"id"`
	WorldID string     `json:"world_id"`
	Kind    MemoryKind `json:"kind"`
	// ScopeID ties the fragment to a region or conversation, when known.
	ScopeID string `json:"scope_id,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	// GameTime is the in-world time the fragment refers to.
	GameTime  GameTime  `json:"game_time"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
