// NPC dialogue: in-character replies and the interaction record kept per exchange.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DialogueRequest is one player message to an NPC.
type DialogueRequest struct {
	Owner      string `json:"user"`
	NPCName    string `json:"npc_name"`
	NPCType    string `json:"npc_type"`
	Context    string `json:"npc_context"`
	Message    string `json:"message"`
	Sentiment  string `json:"sentiment"`
	MemoryTier int    `json:"memory_tier"`
}

// Interaction is a logged NPC exchange.
type Interaction struct {
	ID         string    `json:"id" db:"id"`
	Owner      string    `json:"user" db:"owner"`
	NPCName    string    `json:"npc_name" db:"npc_name"`
	NPCType    string    `json:"npc_type" db:"npc_type"`
	Context    string    `json:"interaction_context" db:"interaction_context"`
	Message    string    `json:"player_message" db:"player_message"`
	Response   string    `json:"npc_response" db:"npc_response"`
	Sentiment  string    `json:"sentiment" db:"sentiment"`
	MemoryTier int       `json:"memory_tier" db:"memory_tier"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

func (r *DialogueRequest) defaults() {
	if r.Owner == "" {
		r.Owner = "anonymous"
	}
	if r.NPCName == "" {
		r.NPCName = "Unknown NPC"
	}
	if r.NPCType == "" {
		r.NPCType = "civilian"
	}
	if r.Context == "" {
		r.Context = "You are a helpful NPC in the Star Wars universe."
	}
	if r.Sentiment == "" {
		r.Sentiment = "neutral"
	}
	if r.MemoryTier == 0 {
		r.MemoryTier = 1
	}
}

func dialogueSystemPrompt(r DialogueRequest) string {
	return fmt.Sprintf(`You are %s, a %s in the Star Wars galaxy.
Respond in character, maintaining immersive, lore-accurate dialogue.
Keep responses concise but engaging. Never break character or mention real-world concepts.

Context: %s

Guidelines:
- Use appropriate Star Wars terminology and references
- Maintain the character's personality and background
- Respond naturally to the player's input
- Keep responses between 1-3 sentences unless a longer response is clearly needed`,
		r.NPCName, r.NPCType, r.Context)
}

// Speak produces the NPC's reply and the interaction to log. The reply falls
// back to the persona matching the NPC type.
func (n *Narrator) Speak(ctx context.Context, req DialogueRequest, now time.Time) Interaction {
	req.defaults()
	system := dialogueSystemPrompt(req)
	reply := n.Text(ctx, system, req.Message, "")
	return Interaction{
		ID:         uuid.NewString(),
		Owner:      req.Owner,
		NPCName:    req.NPCName,
		NPCType:    req.NPCType,
		Context:    req.Context,
		Message:    req.Message,
		Response:   reply,
		Sentiment:  req.Sentiment,
		MemoryTier: req.MemoryTier,
		Timestamp:  now,
	}
}

// GroupByNPC buckets interactions by NPC name, keeping input order.
func GroupByNPC(interactions []Interaction) map[string][]Interaction {
	out := make(map[string][]Interaction)
	for _, in := range interactions {
		out[in.NPCName] = append(out[in.NPCName], in)
	}
	return out
}
