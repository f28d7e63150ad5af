// Package answer turns retrieved profile excerpts into a grounded natural
// language answer. The synthesizer owns the grounding prompt: the model may
// only assert what the supplied excerpts support, and a question with no
// supporting excerpts gets an explicit "not in the profile" response rather
// than a guess.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tebatto/profilebot/internal/rag"
)

// ErrGeneration marks failures of the language model backend: network
// errors, auth failures, or an empty completion. Matched with errors.Is.
var ErrGeneration = errors.New("answer generation failed")

// emptyContext replaces the excerpt block when retrieval found nothing above
// the relevance threshold, so the model states the information is unavailable
// instead of receiving no context message at all.
const emptyContext = "Profile excerpts:\n\n" +
	"No relevant excerpts were found for this question. State that the " +
	"information is not available in the profile."

// systemPrompt establishes the grounding contract for every completion.
// The exclusions are deliberate: the profile owner does not want those
// topics presented as part of their professional profile.
const systemPrompt = `You are an assistant that answers questions about one person's
professional profile, using ONLY the excerpts provided below.

Rules you must follow:
- Base every statement on the excerpts. If the excerpts mention something the
  question asks about, affirm it confidently — do not hedge about information
  that is plainly present.
- If the excerpts do not contain the answer, say so plainly. Never invent
  facts, dates, employers, or skills.
- Answer in 6 to 10 sentences of plain prose. No markdown, no bullet lists,
  no headings.
- Answer in the language the question was asked in.
- Do not present the doctoral thesis as completed work unless the excerpts
  say it was completed.
- Never mention reality-TV appearances (such as Koh-Lanta) even if the
  excerpts reference them; they are not part of the professional profile.
- Do not present course material or coursework as the person's own projects
  or professional accomplishments.`

// Synthesizer generates grounded answers from retrieved documents using a
// chat model.
type Synthesizer struct {
	chatModel model.ToolCallingChatModel
}

// NewSynthesizer wraps the given chat model. The model's sampling parameters
// (temperature, max tokens) are fixed at construction by the provider
// factory.
func NewSynthesizer(chatModel model.ToolCallingChatModel) (*Synthesizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("answer: chat model must not be nil")
	}
	return &Synthesizer{chatModel: chatModel}, nil
}

// Synthesize produces an answer to question grounded in docs. Model failures
// and empty completions wrap ErrGeneration.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, docs []rag.Document) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("answer: question must not be empty")
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.SystemMessage(buildContext(docs)),
		schema.UserMessage(question),
	}

	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: model returned an empty completion", ErrGeneration)
	}

	return strings.TrimSpace(resp.Content), nil
}

// buildContext formats the retrieved excerpts into the context message, one
// numbered block per excerpt with its origin document.
func buildContext(docs []rag.Document) string {
	if len(docs) == 0 {
		return emptyContext
	}

	var sb strings.Builder
	sb.WriteString("Profile excerpts:\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&sb, "[%d] (from %s, page %d)\n%s\n\n", i+1, doc.Source, doc.Page, doc.Content)
	}
	return sb.String()
}
