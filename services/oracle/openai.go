package oraclesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grading"
)

const (
	textSystemPrompt = "You are an expert teaching assistant grading student assignments. " +
		"Provide constructive, encouraging feedback with specific examples. Grade on a 1-5 scale where 5 is excellent."
	imageSystemPrompt = "You are an expert teaching assistant grading student work. " +
		"Analyze the image submission and provide constructive feedback. Grade on a 1-5 scale."

	defaultTextRubric  = "Grade based on completeness, quality, and effort. Be fair and encouraging."
	defaultImageRubric = "Grade based on quality, effort, and meeting requirements"

	resultShape = `{
  "score": <number 1-5>,
  "feedback": "<overall feedback>",
  "strengths": "<what they did well>",
  "improvements": "<suggestions for improvement>",
  "analysis": "<detailed technical analysis>"
}`
)

type (
	chatContentPart struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}

	imageURL struct {
		URL string `json:"url"`
	}

	chatMessage struct {
		Role    string      `json:"role"`
		Content interface{} `json:"content"` // string or []chatContentPart
	}

	responseFormat struct {
		Type string `json:"type"`
	}

	chatRequest struct {
		Model          string         `json:"model"`
		Messages       []chatMessage  `json:"messages"`
		Temperature    *float64       `json:"temperature,omitempty"`
		MaxTokens      int            `json:"max_tokens,omitempty"`
		ResponseFormat responseFormat `json:"response_format"`
	}

	chatResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
)

// OpenAI grades through the chat completions API, using a vision request for image files.
type OpenAI struct {
	client      *resty.Client
	model       string
	temperature float64
	maxTokens   int
	logger      core.Logger
}

var _ grading.Oracle = (*OpenAI)(nil) // interface compliance check

func NewOpenAI(conf core.GradingConfig, logger core.Logger) *OpenAI {
	return &OpenAI{
		client:      newClient(conf.OpenAIBaseURL, conf.Timeout).SetAuthToken(conf.OpenAIKey),
		model:       conf.OpenAIModel,
		temperature: conf.OpenAITemperature,
		maxTokens:   conf.OpenAIMaxTokens,
		logger:      logger,
	}
}

func (o *OpenAI) Grade(ctx context.Context, gc grading.Context) (grading.Result, error) {
	var req chatRequest
	if gc.IsImage() {
		req = o.imageRequest(gc)
	} else {
		req = o.textRequest(gc)
	}

	res, err := o.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return grading.Result{}, requestError(ctx, err)
	}
	if res.IsError() {
		o.logger.Warn("openai api error", "status", res.StatusCode(), "body", truncate(res.Body()))
		return grading.Result{}, statusError(res)
	}

	var cr chatResponse
	if err := json.Unmarshal(res.Body(), &cr); err != nil {
		return grading.Result{}, &core.GradingOracleError{Kind: core.OracleSchema, Body: truncate(res.Body()), Err: errors.Wrap(err, "decoding completion")}
	}
	if len(cr.Choices) == 0 {
		return grading.Result{}, &core.GradingOracleError{Kind: core.OracleSchema, Body: truncate(res.Body()), Err: errors.New("no completion choice")}
	}
	return grading.ParseResult([]byte(cr.Choices[0].Message.Content))
}

func (o *OpenAI) textRequest(gc grading.Context) chatRequest {
	temp := o.temperature
	return chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: textSystemPrompt},
			{Role: "user", Content: TextPrompt(gc)},
		},
		Temperature:    &temp,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
}

func (o *OpenAI) imageRequest(gc grading.Context) chatRequest {
	return chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: imageSystemPrompt},
			{Role: "user", Content: []chatContentPart{
				{Type: "text", Text: ImagePrompt(gc)},
				{Type: "image_url", ImageURL: &imageURL{URL: gc.FileURL}},
			}},
		},
		MaxTokens:      o.maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// TextPrompt builds the grading instructions of a text submission.
func TextPrompt(gc grading.Context) string {
	b := new(strings.Builder)
	_, _ = fmt.Fprintf(b, "Grade this student assignment and return ONLY a JSON object with this exact structure:\n%s\n\n", resultShape)
	_, _ = fmt.Fprintf(b, "ASSIGNMENT: %s\n\n", gc.AssignmentTitle)
	if gc.ModuleContext != "" {
		_, _ = fmt.Fprintf(b, "MODULE: %s\n", gc.ModuleContext)
	}
	if gc.StepContext != "" {
		_, _ = fmt.Fprintf(b, "STEP: %s\n", gc.StepContext)
	}
	_, _ = fmt.Fprintf(b, "INSTRUCTIONS:\n%s\n\n", gc.Instructions)
	_, _ = fmt.Fprintf(b, "GRADING RUBRIC:\n%s\n\n", orDefault(gc.Rubric, defaultTextRubric))
	b.WriteString("STUDENT SUBMISSION:\n")
	if gc.SubmissionURL != "" {
		_, _ = fmt.Fprintf(b, "URL: %s\n", gc.SubmissionURL)
	}
	if gc.FileURL != "" {
		_, _ = fmt.Fprintf(b, "File: %s\n", gc.FileURL)
	}
	if gc.StudentNotes != "" {
		_, _ = fmt.Fprintf(b, "Student Notes: %s\n", gc.StudentNotes)
	}
	b.WriteString(`
Important:
- Visit the URL if provided and analyze the work
- Be constructive and encouraging
- Provide specific examples
- Grade fairly but kindly
- Focus on learning progress
- Return ONLY the JSON object, no other text`)
	return b.String()
}

// ImagePrompt builds the text part of a vision grading request.
func ImagePrompt(gc grading.Context) string {
	b := new(strings.Builder)
	b.WriteString("Grade this visual assignment:\n\n")
	_, _ = fmt.Fprintf(b, "ASSIGNMENT: %s\n", gc.AssignmentTitle)
	_, _ = fmt.Fprintf(b, "INSTRUCTIONS: %s\n", gc.Instructions)
	_, _ = fmt.Fprintf(b, "RUBRIC: %s\n", orDefault(gc.Rubric, defaultImageRubric))
	if gc.StudentNotes != "" {
		_, _ = fmt.Fprintf(b, "STUDENT NOTES: %s\n", gc.StudentNotes)
	}
	_, _ = fmt.Fprintf(b, "\nReturn ONLY a JSON object:\n%s", resultShape)
	return b.String()
}
