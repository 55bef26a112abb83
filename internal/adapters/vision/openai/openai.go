package openai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/adapters/vision"
)

type API struct {
	client *openai.Client
	model  string
	logger *log.Entry
}

const DefaultModel = "gpt-4o-mini"

const scoringPrompt = `You are an image moderation assistant for an exam-preparation ` +
	`Telegram channel. Given an image, decide whether it is a chat screenshot taken to ` +
	`threaten or falsely report the channel, or inappropriate content. Respond with a ` +
	`single line "<category> <confidence>", where category is one of: screenshot, ` +
	`inappropriate, none, and confidence is a number between 0 and 1.`

func NewAnalyzer(apiKey, model, baseURL string, logger *log.Entry) vision.Analyzer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &API{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

func (o *API) Score(ctx context.Context, imageRef string) (vision.Score, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.02,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scoringPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageRef},
					},
				},
			},
		},
	})
	if err != nil {
		return vision.Score{}, fmt.Errorf("image scoring request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return vision.Score{}, fmt.Errorf("no response choices available")
	}
	return parseScore(resp.Choices[0].Message.Content)
}

func parseScore(content string) (vision.Score, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(content)))
	if len(fields) < 2 {
		return vision.Score{}, fmt.Errorf("malformed score response %q", content)
	}
	confidence, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return vision.Score{}, fmt.Errorf("parse confidence from %q: %w", content, err)
	}
	if confidence < 0 || confidence > 1 {
		return vision.Score{}, fmt.Errorf("confidence %f out of range", confidence)
	}

	score := vision.Score{Confidence: confidence}
	switch vision.Category(fields[0]) {
	case vision.CategoryScreenshot:
		score.Category = vision.CategoryScreenshot
	case vision.CategoryInappropriate:
		score.Category = vision.CategoryInappropriate
	case vision.CategoryNone:
		score.Category = vision.CategoryNone
	default:
		return vision.Score{}, fmt.Errorf("unknown category in %q", content)
	}
	return score, nil
}
