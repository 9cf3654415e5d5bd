package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestScorerHeuristicFallback(t *testing.T) {
	scorer := NewScorer(nil, nil, 10)

	out, err := scorer.Score(context.Background(), []string{"Bitcoin breakout, bull rally!", "exchange hack and crash", "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(out))
	}
	if out[0].Score <= 0 || out[1].Score >= 0 {
		t.Fatalf("expected bullish then bearish, got %+v", out)
	}
	if out[2].Score != 0 {
		t.Fatalf("expected empty cleaned text to score 0, got %v", out[2].Score)
	}
	if out[0].Model != heuristicModel {
		t.Fatalf("expected heuristic model, got %s", out[0].Model)
	}
}

func TestScorerUsesLLMWhenAvailable(t *testing.T) {
	llm := &stubLLMScorer{scores: []Polarity{{Index: 1, Score: 0.8, Model: "llm:gpt-4o-mini"}}}
	scorer := NewScorer(nil, llm, 10)

	out, err := scorer.Score(context.Background(), []string{"@skip", "neutral words", "more words"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(llm.batches) != 1 || len(llm.batches[0]) != 2 {
		t.Fatalf("expected one batch without empty text, got %v", llm.batches)
	}
	if out[2].Score != 0.8 || out[2].Model != "llm:gpt-4o-mini" {
		t.Fatalf("expected llm override on third text, got %+v", out[2])
	}
	if out[1].Model != heuristicModel {
		t.Fatalf("expected heuristic for unscored text, got %s", out[1].Model)
	}
}

func TestScorerFallsBackWhenLLMErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	scorer := NewScorer(zap.New(core), &stubLLMScorer{err: errors.New("boom")}, 10)

	out, err := scorer.Score(context.Background(), []string{"hack and dump"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Model != heuristicModel || out[0].Score >= 0 {
		t.Fatalf("expected bearish heuristic fallback, got %+v", out[0])
	}
	entries := logs.FilterMessage("llm scoring failed, using heuristic").All()
	if len(entries) != 1 {
		t.Fatalf("expected one llm failure warning, got %d", logs.Len())
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Fatalf("expected error field boom, got %v", got)
	}
}

func TestOpenAIScorerParsesFencedJSON(t *testing.T) {
	client := &stubChatClient{response: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "```json\n[{\"id\":0,\"polarity\":1.7},{\"id\":5,\"polarity\":0.1},{\"id\":1,\"polarity\":-0.4}]\n```"}},
		},
	}}
	scorer := &OpenAIScorer{client: client, model: "gpt-4o-mini"}

	out, err := scorer.ScoreBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected out-of-range id dropped, got %+v", out)
	}
	if out[0].Score != 1 || out[1].Score != -0.4 {
		t.Fatalf("expected clamped scores, got %+v", out)
	}
}

func TestOpenAIScorerEmptyCompletion(t *testing.T) {
	scorer := &OpenAIScorer{client: &stubChatClient{response: &openai.ChatCompletion{}}, model: "m"}
	if _, err := scorer.ScoreBatch(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for empty completion")
	}
}

func TestNewOpenAIScorerRequiresKey(t *testing.T) {
	if NewOpenAIScorer(" ", "") != nil {
		t.Fatal("expected nil scorer without api key")
	}
}

type stubLLMScorer struct {
	scores  []Polarity
	err     error
	batches [][]string
}

func (s *stubLLMScorer) ScoreBatch(ctx context.Context, texts []string) ([]Polarity, error) {
	s.batches = append(s.batches, append([]string(nil), texts...))
	if s.err != nil {
		return nil, s.err
	}
	return append([]Polarity(nil), s.scores...), nil
}

type stubChatClient struct {
	response *openai.ChatCompletion
	err      error
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return s.response, s.err
}
