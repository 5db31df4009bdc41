// Package openai provides a SuggestionClient implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
	"github.com/ersonp/gm-core/internal/infrastructure/config"
)

const presencePrompt = `You are the staging assistant for a tabletop game master. Decide which NPCs should be present in the region right now.

You are given the world state, the roster of NPCs tied to the region, the deterministic rule engine's verdict per NPC, any free-text conditions the rule engine could not judge, and recent memory fragments. You may agree with the rule engine or override it, but every entry needs a short in-world reasoning.

For each NPC in the roster, return:
- character_id: The NPC's ID as given
- name: The NPC's name as given
- present: true if the NPC should be in the region
- hidden: true if the NPC is present but not visible to players (optional, default false)
- mood: A one-word mood (optional)
- reasoning: Why, in one sentence

Return ONLY a valid JSON array, no other text.

Example:
Output: [
  {"character_id": "npc-blacksmith", "name": "Brunhild", "present": true, "mood": "irritable", "reasoning": "The forge is lit every morning."},
  {"character_id": "npc-smuggler", "name": "Vex", "present": false, "reasoning": "Vex avoids the market in daylight."}
]`

const dialoguePrompt = `You are voicing an NPC for a tabletop game master. Write the NPC's next line in response to the player.

Stay in character, keep it short (one to three sentences of speech), and ground it in the given world state and memory fragments. If the exchange would plausibly consume in-world time, estimate it.

Return ONLY a valid JSON object, no other text:
- text: The NPC's spoken response
- reasoning: Why the NPC responds this way, in one sentence
- time_cost_minutes: In-world minutes the exchange consumes (0 if negligible)`

// Client implements the SuggestionClient interface using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI suggestion client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// SuggestPresence asks the model which NPCs should be present in the
// request's region scope.
func (c *Client) SuggestPresence(ctx context.Context, req ports.PresenceRequest) (entities.CandidateSet, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: presencePrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: presenceInput(req),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return entities.CandidateSet{}, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return entities.CandidateSet{}, fmt.Errorf("no response from OpenAI: %w", ports.ErrMalformedResponse)
	}

	content := resp.Choices[0].Message.Content
	content = cleanJSONResponse(content)

	var rawEntries []rawPresenceEntry
	if err := json.Unmarshal([]byte(content), &rawEntries); err != nil {
		return entities.CandidateSet{}, fmt.Errorf("parsing presence JSON (response: %s): %w", content, ports.ErrMalformedResponse)
	}

	entries := make([]entities.Candidate, 0, len(rawEntries))
	for _, re := range rawEntries {
		if re.CharacterID == "" {
			continue
		}
		entries = append(entries, entities.Candidate{
			SubjectID:     re.CharacterID,
			Name:          re.Name,
			Included:      re.Present,
			Hidden:        re.Hidden,
			Mood:          re.Mood,
			Justification: re.Reasoning,
		})
	}

	return entities.CandidateSet{
		Source:  entities.SourceAI,
		Entries: entries,
	}, nil
}

// GenerateDialogue asks the model for the NPC's next line.
func (c *Client) GenerateDialogue(ctx context.Context, req ports.DialogueRequest) (ports.DialogueDraft, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: dialoguePrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: dialogueInput(req),
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return ports.DialogueDraft{}, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return ports.DialogueDraft{}, fmt.Errorf("no response from OpenAI: %w", ports.ErrMalformedResponse)
	}

	content := resp.Choices[0].Message.Content
	content = cleanJSONResponse(content)

	var raw rawDialogue
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return ports.DialogueDraft{}, fmt.Errorf("parsing dialogue JSON (response: %s): %w", content, ports.ErrMalformedResponse)
	}
	if raw.Text == "" {
		return ports.DialogueDraft{}, fmt.Errorf("empty dialogue text: %w", ports.ErrMalformedResponse)
	}

	return ports.DialogueDraft{
		Text:            raw.Text,
		Reasoning:       raw.Reasoning,
		TimeCostMinutes: raw.TimeCostMinutes,
	}, nil
}

// rawPresenceEntry is the JSON structure for presence suggestions.
type rawPresenceEntry struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Present     bool   `json:"present"`
	Hidden      bool   `json:"hidden,omitempty"`
	Mood        string `json:"mood,omitempty"`
	Reasoning   string `json:"reasoning"`
}

// rawDialogue is the JSON structure for dialogue drafts.
type rawDialogue struct {
	Text            string `json:"text"`
	Reasoning       string `json:"reasoning"`
	TimeCostMinutes int64  `json:"time_cost_minutes"`
}

// presenceInput renders the request as the user message.
func presenceInput(req ports.PresenceRequest) string {
	var b strings.Builder
	snap := req.Snapshot

	fmt.Fprintf(&b, "World: %s\nRegion: %s\nGame time: %s (%s)\n",
		snap.WorldID, snap.RegionID,
		snap.Calendar.Format(snap.GameTime), snap.Calendar.Period(snap.GameTime))

	if len(snap.Flags) > 0 {
		flags, _ := json.Marshal(snap.Flags)
		fmt.Fprintf(&b, "World flags: %s\n", flags)
	}
	if len(snap.TriggeredEvents) > 0 {
		events := make([]string, 0, len(snap.TriggeredEvents))
		for id, fired := range snap.TriggeredEvents {
			if fired {
				events = append(events, id)
			}
		}
		sort.Strings(events)
		fmt.Fprintf(&b, "Active events: %s\n", strings.Join(events, ", "))
	}

	b.WriteString("\nRoster and rule engine verdicts:\n")
	for _, entry := range snap.Roster {
		verdict := "excluded"
		if c, ok := req.RuleCandidates.Find(entry.CharacterID); ok && c.Included {
			verdict = "included"
		}
		fmt.Fprintf(&b, "- %s (%s): rules say %s\n", entry.Name, entry.CharacterID, verdict)
		for _, cond := range req.CustomRules[entry.CharacterID] {
			fmt.Fprintf(&b, "  condition to judge: %s\n", cond)
		}
	}

	if len(req.Context) > 0 {
		b.WriteString("\nRecent memory:\n")
		for _, f := range req.Context {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}
	if req.Guidance != "" {
		fmt.Fprintf(&b, "\nDirector guidance: %s\n", req.Guidance)
	}

	return b.String()
}

// dialogueInput renders the request as the user message.
func dialogueInput(req ports.DialogueRequest) string {
	var b strings.Builder
	snap := req.Snapshot

	fmt.Fprintf(&b, "NPC: %s (%s)\n", req.NPCName, req.NPCID)
	if req.NPCMood != "" {
		fmt.Fprintf(&b, "NPC mood: %s\n", req.NPCMood)
	}
	fmt.Fprintf(&b, "Game time: %s (%s)\n",
		snap.Calendar.Format(snap.GameTime), snap.Calendar.Period(snap.GameTime))

	if len(req.Context) > 0 {
		b.WriteString("\nRecent memory:\n")
		for _, f := range req.Context {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}
	if req.Guidance != "" {
		fmt.Fprintf(&b, "\nDirector guidance: %s\n", req.Guidance)
	}
	if req.Feedback != "" {
		fmt.Fprintf(&b, "\nThe previous draft was rejected (attempt %d). Director feedback: %s\n", req.Attempt, req.Feedback)
	}

	fmt.Fprintf(&b, "\nPlayer says: %q\n", req.PlayerLine)
	return b.String()
}

// mapError converts transport failures to the port's sentinel errors so the
// suggestion layer can degrade uniformly.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("calling OpenAI: %w", ports.ErrSuggestionTimeout)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 500 {
		return fmt.Errorf("calling OpenAI (status %d): %w", apiErr.HTTPStatusCode, ports.ErrServiceUnavailable)
	}
	return fmt.Errorf("calling OpenAI: %w", err)
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
