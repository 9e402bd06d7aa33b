package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/openai/openai-go/v2/shared/constant"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

type fakeChatClient struct {
	response   *openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (f *fakeChatClient) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.lastParams = body
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func newTestSummaryService(chat chatCompletionClient) *SummaryService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &SummaryService{chat: chat, model: "test-model", logger: logger}
}

func chatResponse(content, refusal string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		ID:      "sum-1",
		Created: time.Now().Unix(),
		Model:   "test-model",
		Object:  constant.ValueOf[constant.ChatCompletion](),
		Choices: []openai.ChatCompletionChoice{
			{
				FinishReason: "stop",
				Index:        0,
				Message: openai.ChatCompletionMessage{
					Content: content,
					Refusal: refusal,
					Role:    constant.ValueOf[constant.Assistant](),
				},
			},
		},
		Usage: openai.CompletionUsage{PromptTokens: 42, CompletionTokens: 12, TotalTokens: 54},
	}
}

func TestSummarizeReturnsTrimmedSummary(t *testing.T) {
	chat := &fakeChatClient{response: chatResponse("  \"We build fast websites.\"  ", "")}
	svc := newTestSummaryService(chat)

	result, err := svc.Summarize(context.Background(), SummaryInput{
		Title:    "Launch",
		Content:  "Intro ![Team photo](https://cdn.example.com/team.png) and more text.",
		Language: "de",
	})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if result.Summary != "We build fast websites." {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if result.PromptTokens != 42 || result.CompletionTokens != 12 {
		t.Fatalf("unexpected usage: %+v", result)
	}

	if chat.lastParams.Model != shared.ChatModel("test-model") {
		t.Fatalf("unexpected model: %s", chat.lastParams.Model)
	}
	if len(chat.lastParams.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(chat.lastParams.Messages))
	}
}

func TestSummarizeErrors(t *testing.T) {
	disabled := NewSummaryService(SummaryOptions{})
	if disabled.Enabled() {
		t.Fatal("service without api key must be disabled")
	}
	if _, err := disabled.Summarize(context.Background(), SummaryInput{Content: "x"}); !errors.Is(err, ErrAINotConfigured) {
		t.Fatalf("expected ErrAINotConfigured, got %v", err)
	}

	upstream := eris.New("boom")
	failing := newTestSummaryService(&fakeChatClient{err: upstream})
	if _, err := failing.Summarize(context.Background(), SummaryInput{Content: "x"}); !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error to be wrapped, got %v", err)
	}

	refusing := newTestSummaryService(&fakeChatClient{response: chatResponse("", "I can't help with that")})
	if _, err := refusing.Summarize(context.Background(), SummaryInput{Content: "x"}); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected refusal error, got %v", err)
	}

	empty := newTestSummaryService(&fakeChatClient{response: &openai.ChatCompletion{}})
	if _, err := empty.Summarize(context.Background(), SummaryInput{Content: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	content, images := replaceMarkdownImages("A ![Logo](/logo.png) and ![ ](<https://x.test/a b.png>)")
	if images != 2 {
		t.Fatalf("expected 2 images, got %d", images)
	}
	if strings.Contains(content, "logo.png") || !strings.Contains(content, "[image: Logo]") {
		t.Fatalf("unexpected replacement: %q", content)
	}

	prompt := buildSummaryPrompt(" Title ", content, "fr", images)
	if !strings.Contains(prompt, "Language: Français") {
		t.Fatalf("expected language line in prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "Title: Title") || !strings.Contains(prompt, "2 images") {
		t.Fatalf("unexpected prompt: %q", prompt)
	}

	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("truncateRunes = %q", got)
	}
}
