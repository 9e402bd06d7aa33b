package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// ErrAINotConfigured 表示未配置 OPENAI_API_KEY。
var ErrAINotConfigured = errors.New("ai summaries are not configured")

const (
	defaultSummaryModel        = "gpt-4o-mini"
	defaultSummaryTemperature  = 0.2
	defaultSummaryMaxTokens    = 160
	maxSummaryContentRuneCount = 4000
	maxAILogSnippetRunes       = 512
)

const defaultSummarySystemPrompt = "You write concise marketing copy. Summarise the given content in at most two sentences (under 300 characters). Answer with plain text only, no markdown, no quotes, in the requested language."

var markdownImagePattern = regexp.MustCompile(`!\[([^\]]*)]\((<[^>]+>|[^)\s]+)([^)]*)\)`)

type chatCompletionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// SummaryOptions 描述模型接入参数。
type SummaryOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// SummaryInput 描述生成摘要所需的上下文。
type SummaryInput struct {
	Title    string
	Content  string
	Language string
}

// SummaryResult 返回模型生成的摘要及少量元数据。
type SummaryResult struct {
	Summary          string `json:"summary"`
	PromptTokens     int64  `json:"promptTokens"`
	CompletionTokens int64  `json:"completionTokens"`
}

// SummaryService 基于 OpenAI 兼容接口生成摘要建议。
type SummaryService struct {
	chat   chatCompletionClient
	model  string
	logger *logrus.Logger
}

// NewSummaryService 构造 SummaryService；APIKey 为空时返回未启用的实例。
func NewSummaryService(opts SummaryOptions) *SummaryService {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultSummaryModel
	}

	svc := &SummaryService{model: model, logger: logger}
	if strings.TrimSpace(opts.APIKey) == "" {
		return svc
	}

	requestOptions := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(opts.HTTPClient))
	}
	client := openai.NewClient(requestOptions...)
	svc.chat = &client.Chat.Completions
	return svc
}

// Enabled 判断是否可以调用模型。
func (s *SummaryService) Enabled() bool {
	return s != nil && s.chat != nil
}

// Summarize 生成摘要建议，未配置时返回 ErrAINotConfigured。
func (s *SummaryService) Summarize(ctx context.Context, input SummaryInput) (SummaryResult, error) {
	if !s.Enabled() {
		return SummaryResult{}, ErrAINotConfigured
	}

	content, images := replaceMarkdownImages(input.Content)
	userPrompt := buildSummaryPrompt(input.Title, truncateRunes(content, maxSummaryContentRuneCount), input.Language, images)
	s.logExchange("prompt", userPrompt)

	completion, err := s.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(defaultSummarySystemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(defaultSummaryMaxTokens),
		Temperature: openai.Float(defaultSummaryTemperature),
	})
	if err != nil {
		return SummaryResult{}, eris.Wrap(err, "requesting chat completion")
	}
	if len(completion.Choices) == 0 {
		return SummaryResult{}, eris.New("completion returned no choices")
	}

	choice := completion.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return SummaryResult{}, eris.Errorf("model refused to summarise: %s", refusal)
	}
	summary := strings.Trim(strings.TrimSpace(choice.Message.Content), "\"")
	if summary == "" {
		return SummaryResult{}, eris.New("completion content is empty")
	}
	s.logExchange("response", summary)

	return SummaryResult{
		Summary:          summary,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}

func (s *SummaryService) logExchange(phase, content string) {
	snippet := content
	runeCount := utf8.RuneCountInString(snippet)
	if runeCount > maxAILogSnippetRunes {
		snippet = string([]rune(snippet)[:maxAILogSnippetRunes]) + "…(truncated)"
	}
	s.logger.WithFields(logrus.Fields{"phase": phase, "runes": runeCount, "model": s.model}).Debug(snippet)
}

func buildSummaryPrompt(title, content, language string, images int) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Language: %s\n", locale.Name(locale.NormalizeLanguage(language)))
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&builder, "Title: %s\n", title)
	}
	if images > 0 {
		fmt.Fprintf(&builder, "The content contains %d images, shown as [image: alt].\n", images)
	}
	if content = strings.TrimSpace(content); content != "" {
		builder.WriteString("\nContent:\n")
		builder.WriteString(content)
	}
	return builder.String()
}

// replaceMarkdownImages 把图片语法替换为 alt 文本，避免长链接占用 token。
func replaceMarkdownImages(input string) (string, int) {
	count := 0
	out := markdownImagePattern.ReplaceAllStringFunc(input, func(match string) string {
		count++
		groups := markdownImagePattern.FindStringSubmatch(match)
		alt := ""
		if len(groups) > 1 {
			alt = strings.TrimSpace(groups[1])
		}
		return "[image: " + alt + "]"
	})
	return out, count
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit])
}
