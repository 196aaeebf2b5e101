package narration

import (
	"context"
	"fmt"
	"strings"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a meticulous badminton commentator. Your description must match the actual quality of the shot; never flatter a poor one."

var qualityLabels = map[engine.Quality]string{
	engine.QualityCriticalFail:    "critical failure (worst)",
	engine.QualityLow:             "low quality (poor)",
	engine.QualityNormal:          "normal",
	engine.QualityHigh:            "high quality (excellent)",
	engine.QualityCriticalSuccess: "critical success (perfect)",
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI narrates through any OpenAI-compatible chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// the caller's timeout is the retry budget
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model}
}

func (o *OpenAI) Describe(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(Prompt(req)),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(60),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Prompt renders the commentator instructions for one shot.
func Prompt(req Request) string {
	label, ok := qualityLabels[req.Outcome.Quality]
	if !ok {
		label = string(req.Outcome.Quality)
	}

	var b strings.Builder
	b.WriteString("Describe this badminton shot in one vivid sentence of at most 20 words.\n\n")
	fmt.Fprintf(&b, "Player: %s\n", req.Player)
	fmt.Fprintf(&b, "Shot: %s\n", strings.ReplaceAll(req.Skill, "_", " "))
	fmt.Fprintf(&b, "Quality: %s\n", label)
	fmt.Fprintf(&b, "Roll: %d (out of 20)\n", req.Outcome.FinalRoll)
	fmt.Fprintf(&b, "Score: %d:%d\n", req.ScoreA, req.ScoreB)
	if intent := strings.TrimSpace(req.Intent); intent != "" {
		fmt.Fprintf(&b, "Player's intent: %q\n", intent)
	}
	if req.Scored {
		fmt.Fprintf(&b, "The rally ended with a point (%s).\n", req.Reason)
	}
	b.WriteString("\nRules: a critical failure must sound like a mistake (net, out, whiff); low quality must sound weak; ")
	b.WriteString("normal sounds steady; high quality sounds sharp and threatening; critical success sounds unstoppable. ")
	b.WriteString("Reply with the description only.")
	return b.String()
}
