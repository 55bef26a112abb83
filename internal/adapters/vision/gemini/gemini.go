package gemini

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/adapters/vision"
)

type API struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *log.Entry
}

const DefaultModel = "gemini-2.5-flash-lite"

const scoringPrompt = `You are an image moderation assistant for an exam-preparation ` +
	`Telegram channel. Decide whether the image at the given URL is a chat screenshot taken ` +
	`to threaten or falsely report the channel, or inappropriate content. Respond with a ` +
	`single line "<category> <confidence>", category one of: screenshot, inappropriate, ` +
	`none; confidence between 0 and 1.`

func NewAnalyzer(apiKey, model string, logger *log.Entry) (vision.Analyzer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	generativeModel := client.GenerativeModel(model)
	generativeModel.SetTemperature(0.02)
	generativeModel.ResponseMIMEType = "text/plain"
	generativeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(scoringPrompt)},
	}
	return &API{
		client: client,
		model:  generativeModel,
		logger: logger,
	}, nil
}

func (g *API) Score(ctx context.Context, imageRef string) (vision.Score, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text("Image URL: "+imageRef))
	if err != nil {
		return vision.Score{}, fmt.Errorf("image scoring request: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return vision.Score{}, fmt.Errorf("no response candidates available")
	}

	response := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		response += fmt.Sprintf("%v", part)
	}
	return parseScore(response)
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

	switch category := vision.Category(fields[0]); category {
	case vision.CategoryScreenshot, vision.CategoryInappropriate, vision.CategoryNone:
		return vision.Score{Category: category, Confidence: confidence}, nil
	default:
		return vision.Score{}, fmt.Errorf("unknown category in %q", content)
	}
}
