// internal/bot/openai.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = `You help run a social deduction party game in which one player, the spy, does not know the secret location. Always reply with a single JSON object and nothing else.`

// OpenAIConfig configures the OpenAI-backed Decider.
type OpenAIConfig struct {
	APIKey   string
	Model    string
	BaseURL  string
	MaxTries uint
	Backoff  time.Duration
}

// chatFunc sends one system+user exchange and returns the reply text.
type chatFunc func(ctx context.Context, system, user string) (string, error)

// OpenAIDecider asks a chat completion model for distractors and bot votes.
type OpenAIDecider struct {
	chat     chatFunc
	maxTries uint
	backoff  time.Duration
}

// NewOpenAIDecider returns an OpenAI-backed Decider, or Unavailable when no
// API key is configured.
func NewOpenAIDecider(cfg OpenAIConfig) Decider {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unavailable{}
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	model := cfg.Model

	chat := func(ctx context.Context, system, user string) (string, error) {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
		})
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
				return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices", ErrMalformedReply)
		}
		return resp.Choices[0].Message.Content, nil
	}
	return newOpenAIDecider(chat, cfg.MaxTries, cfg.Backoff)
}

func newOpenAIDecider(chat chatFunc, maxTries uint, wait time.Duration) *OpenAIDecider {
	if maxTries == 0 {
		maxTries = 1
	}
	return &OpenAIDecider{chat: chat, maxTries: maxTries, backoff: wait}
}

// complete runs one exchange, retrying with a fixed back-off while the
// service reports rate limiting.
func (d *OpenAIDecider) complete(ctx context.Context, user string) (string, error) {
	return backoff.Retry(ctx, func() (string, error) {
		reply, err := d.chat(ctx, systemPrompt, user)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return reply, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(d.backoff)),
		backoff.WithMaxTries(d.maxTries),
	)
}

func (d *OpenAIDecider) SuggestDistractors(ctx context.Context, req DistractorRequest) ([]string, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	reply, err := d.complete(ctx, distractorPrompt(req))
	if err != nil {
		return nil, err
	}
	return parseDistractors(reply, req)
}

func (d *OpenAIDecider) ChooseVote(ctx context.Context, prompt VotePrompt) (string, error) {
	reply, err := d.complete(ctx, votePrompt(prompt))
	if err != nil {
		return "", err
	}
	return parseVote(reply, prompt)
}

func distractorPrompt(req DistractorRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The secret location is %q.\n", req.TrueLocation)
	fmt.Fprintf(&b, "Pick exactly %d locations from the list below that are as different as possible from it, so the spy's candidate list does not cluster around the answer.\n", req.Count)
	b.WriteString("Do not include the secret location. Use the names exactly as written.\n")
	b.WriteString("Reply as {\"distractors\": [\"name\", ...]}.\n\nLocations:\n")
	for _, name := range req.Pool {
		if name == req.TrueLocation {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}

func votePrompt(p VotePrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a player in round %d.\n", p.VoterName, p.Round)
	if p.IsSpy {
		b.WriteString("You are the spy. Vote for someone else so you are not caught.\n")
	} else {
		fmt.Fprintf(&b, "The location is %q and your role is %q. Vote for the player you think is the spy.\n", p.Location, p.Role)
	}
	b.WriteString("Reply as {\"vote\": \"<player id>\"} or {\"vote\": null} to abstain. You may not vote for yourself.\n\nPlayers:\n")
	for _, c := range p.Candidates {
		if c.ID == p.VoterID {
			continue
		}
		fmt.Fprintf(&b, "- id=%s name=%s\n", c.ID, c.Name)
	}
	return b.String()
}
