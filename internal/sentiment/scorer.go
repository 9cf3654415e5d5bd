package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const heuristicModel = "heuristic:v1"

// Polarity is the score assigned to the text at Index within a batch.
type Polarity struct {
	Index int
	Score float64
	Model string
}

type BatchLLMScorer interface {
	ScoreBatch(ctx context.Context, texts []string) ([]Polarity, error)
}

// Scorer assigns a polarity in [-1, 1] to each text. Texts are cleaned
// first; an empty cleaned text scores 0. The keyword heuristic is always
// computed and an LLM, when configured, overrides it per batch.
type Scorer struct {
	llm       BatchLLMScorer
	batchSize int
	logger    *zap.Logger
}

func NewScorer(logger *zap.Logger, llm BatchLLMScorer, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = 24
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{llm: llm, batchSize: batchSize, logger: logger}
}

func (s *Scorer) Score(ctx context.Context, texts []string) ([]Polarity, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cleaned := make([]string, len(texts))
	out := make([]Polarity, len(texts))
	for i, text := range texts {
		cleaned[i] = CleanText(text)
		out[i] = Polarity{Index: i, Score: HeuristicPolarity(cleaned[i]), Model: heuristicModel}
	}

	if s.llm == nil {
		return out, nil
	}
	for start := 0; start < len(cleaned); start += s.batchSize {
		end := min(start+s.batchSize, len(cleaned))
		batch := make([]string, 0, end-start)
		offsets := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			if cleaned[i] == "" {
				continue
			}
			batch = append(batch, cleaned[i])
			offsets = append(offsets, i)
		}
		if len(batch) == 0 {
			continue
		}
		scored, err := s.llm.ScoreBatch(ctx, batch)
		if err != nil {
			s.logger.Warn("llm scoring failed, using heuristic",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}
		for _, row := range scored {
			if row.Index < 0 || row.Index >= len(offsets) {
				continue
			}
			idx := offsets[row.Index]
			out[idx].Score = clamp(row.Score, -1, 1)
			if row.Model != "" {
				out[idx].Model = row.Model
			}
		}
	}
	return out, nil
}

var (
	bullishTerms = []string{"bull", "breakout", "surge", "rally", "adoption", "outflow", "growth", "buy", "uptrend", "recover", "moon", "pump", "gain", "approval"}
	bearishTerms = []string{"bear", "dump", "sell", "crash", "hack", "lawsuit", "ban", "inflow", "decline", "downtrend", "liquidation", "scam", "fear", "loss", "rug"}
)

// HeuristicPolarity scores text by counting bullish and bearish keywords.
func HeuristicPolarity(text string) float64 {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0
	}
	bull := countMatches(text, bullishTerms)
	bear := countMatches(text, bearishTerms)
	return clamp(float64(bull-bear)/float64(bull+bear+1), -1, 1)
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type OpenAIScorer struct {
	client openAIChatClient
	model  string
}

// NewOpenAIScorer returns nil when apiKey is empty.
func NewOpenAIScorer(apiKey string, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIScorer{
		client: &openAIClient{client: client},
		model:  model,
	}
}

func (s *OpenAIScorer) ScoreBatch(ctx context.Context, texts []string) ([]Polarity, error) {
	if s == nil || s.client == nil || len(texts) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, text := range texts {
		sb.WriteString(fmt.Sprintf("id=%d\ntext=%s\n\n", i, text))
	}

	systemPrompt := "You score the polarity of crypto market posts. Return ONLY a JSON array. Each object requires: id (int), polarity (-1..1). No markdown."
	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Posts:\n" + sb.String()),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty scorer completion")
	}

	raw := trimCodeFence(completion.Choices[0].Message.Content)
	var parsed []struct {
		ID       int     `json:"id"`
		Polarity float64 `json:"polarity"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse scorer json: %w", err)
	}

	out := make([]Polarity, 0, len(parsed))
	for _, row := range parsed {
		if row.ID < 0 || row.ID >= len(texts) {
			continue
		}
		out = append(out, Polarity{Index: row.ID, Score: clamp(row.Polarity, -1, 1), Model: "llm:" + s.model})
	}
	return out, nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
