// Package vision names the main object in a camera frame using a hosted
// vision model.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"shop-assistant/internal/util"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const (
	// UnknownObject is the label returned when nothing is clearly visible.
	UnknownObject = "unknown object"
	// PlaceholderConfidence is reported with every identification. The model
	// does not produce a score.
	PlaceholderConfidence = 0.9

	DefaultModel   = "gpt-4o"
	DefaultTimeout = 30 * time.Second

	prompt = `Identify the main object in this image. Respond with just the name of the object (e.g., "apple", "bottle of water", "smartphone"). Be specific but concise. If you cannot clearly identify an object, respond with "unknown object".`
)

var ErrNoImage = errors.New("no image provided")

var dataURLPrefix = regexp.MustCompile(`^data:image/[a-z]+;base64,`)

// Identification is the result of one identify call.
type Identification struct {
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Known reports whether an object was recognised.
func (i Identification) Known() bool {
	return i.Object != "" && i.Object != UnknownObject
}

// Identifier names the main object of an image.
type Identifier interface {
	Identify(ctx context.Context, image []byte) (Identification, error)
}

// Config for the OpenAI backed identifier.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIIdentifier asks a chat completion model to name the object.
type OpenAIIdentifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewOpenAIIdentifier(cfg Config) *OpenAIIdentifier {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAIIdentifier{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

func (o *OpenAIIdentifier) Identify(ctx context.Context, image []byte) (Identification, error) {
	if len(image) == 0 {
		return Identification{}, ErrNoImage
	}

	ctx, span := util.StartSpan(ctx, "Vision.Identify")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		util.VisionLatency.Observe(time.Since(start).Seconds())
	}()

	dataURL := "data:" + mimeType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Model:       openai.ChatModel(o.model),
		MaxTokens:   openai.Int(50),
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		util.VisionRequestsTotal.WithLabelValues("error").Inc()
		o.logger.Error("Object identification error", zap.Error(err))
		return Identification{}, fmt.Errorf("chat completion: %w", err)
	}

	object := UnknownObject
	if len(resp.Choices) > 0 {
		if label := normalizeLabel(resp.Choices[0].Message.Content); label != "" {
			object = label
		}
	}

	result := "identified"
	if object == UnknownObject {
		result = "unknown"
	}
	util.VisionRequestsTotal.WithLabelValues(result).Inc()
	o.logger.Debug("Object identified", zap.String("object", object))

	return Identification{Object: object, Confidence: PlaceholderConfidence}, nil
}

// DecodeImage decodes a base64 image, with or without a data URL prefix.
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrNoImage
	}

	raw := dataURLPrefix.ReplaceAllString(encoded, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid image encoding: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}

func normalizeLabel(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), `."'`)
}

func mimeType(image []byte) string {
	if ct := http.DetectContentType(image); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
