// Package llm answers chat messages with Gemini directly, for setups without
// a console API server.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/logger"
)

const (
	defaultChatModelName  = "gemini-1.5-flash-latest"
	defaultTitleModelName = "gemini-1.5-flash-latest"

	chatSystemInstruction = "You are a helpful knowledge base assistant. Answer questions about the documents of the knowledge bases named below. " +
		"If the answer is not found in them, clearly state that you don't have the information. " +
		"Keep your answers concise and directly related to the user's question. Do not make up information."

	titleSystemInstruction = "You are a helpful assistant that generates concise titles for chat conversations. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."

	emptyReply = "I'm sorry, I couldn't generate a response at this time. Please try again."
)

// KnowledgeBaseNamer resolves knowledge base ids to display names for the
// system instruction. Unknown ids are passed through as-is.
type KnowledgeBaseNamer func(ctx context.Context, ids []string) []string

// GeminiSender keeps one chat history per session id for the lifetime of the
// process; stored history on disk is not replayed into the model.
type GeminiSender struct {
	client   *genai.Client
	names    KnowledgeBaseNamer
	log      logger.Logger
	sessions *historyBook
}

func NewGeminiSender(ctx context.Context, apiKey string, names KnowledgeBaseNamer, log logger.Logger) (*GeminiSender, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GeminiSender{client: client, names: names, log: log, sessions: newHistoryBook()}, nil
}

func (s *GeminiSender) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.log.Warn("llm", "error closing GenAI client", map[string]interface{}{"error": err})
	}
}

// Send implements chat.Sender.
func (s *GeminiSender) Send(ctx context.Context, req chat.SendRequest) (string, error) {
	model := s.client.GenerativeModel(defaultChatModelName)
	names := req.KnowledgeBaseIDs
	if s.names != nil {
		names = s.names(ctx, req.KnowledgeBaseIDs)
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction(names))},
	}

	cs := model.StartChat()
	cs.History = s.sessions.get(req.SessionID)

	resp, err := cs.SendMessage(ctx, genai.Text(req.Text))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	reply, ok := responseText(resp)
	if !ok {
		s.log.Warn("llm", "empty gemini response", map[string]interface{}{"session_id": req.SessionID})
		return emptyReply, nil
	}
	s.sessions.set(req.SessionID, cs.History)
	return reply, nil
}

// Title implements chat.Titler.
func (s *GeminiSender) Title(ctx context.Context, firstMessage string) (string, error) {
	model := s.client.GenerativeModel(defaultTitleModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(titleSystemInstruction)},
	}

	temp := float32(0.3)
	maxTokens := int32(20)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(TitlePrompt(firstMessage)))
	if err != nil {
		return "", fmt.Errorf("gemini title generation request failed: %w", err)
	}
	title, ok := responseText(resp)
	if !ok {
		return "", fmt.Errorf("LLM did not generate a title (empty response)")
	}
	title = CleanTitle(title)
	if title == "" {
		return "", fmt.Errorf("LLM generated an empty title string")
	}
	return title, nil
}

// SystemInstruction lists the knowledge bases the answer should draw on.
func SystemInstruction(knowledgeBases []string) string {
	var b strings.Builder
	b.WriteString(chatSystemInstruction)
	b.WriteString("\n\nKnowledge bases: ")
	if len(knowledgeBases) == 0 {
		b.WriteString("none selected. Tell the user to pick a knowledge base if the question needs one.")
		return b.String()
	}
	b.WriteString(strings.Join(knowledgeBases, ", "))
	b.WriteString(".")
	return b.String()
}

func TitlePrompt(firstMessage string) string {
	return fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a conversation that starts with or is about: %q.", firstMessage)
}

func CleanTitle(raw string) string {
	return strings.Trim(raw, "\"'\n\r\t .")
}

func responseText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", false
	}
	return text.String(), true
}
