// Package summarizer produces the one-line Chinese summary for each article.
// When an LLM client is configured it summarizes the fetched full text;
// otherwise, and on any failure, it degrades to a normalized excerpt. It
// never returns an error.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	readability "github.com/go-shiori/go-readability"
	openai "github.com/sashabaranov/go-openai"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	"github.com/v6582374-netizen/Cerebro/internal/observability/metrics"
	"github.com/v6582374-netizen/Cerebro/internal/utils/text"
)

// Result is the summarizer contract: the normalized text, the model that
// produced it, and whether the fallback path was used.
type Result struct {
	SummaryText  string
	Model        string
	UsedFallback bool
}

// Config parameterizes the summarizer.
type Config struct {
	// ChatModel is the LLM model identifier.
	ChatModel string

	// SourceCharLimit caps how much fetched body text enters the prompt.
	SourceCharLimit int
}

// DefaultConfig returns the default summarizer parameters.
func DefaultConfig(chatModel string) Config {
	return Config{ChatModel: chatModel, SourceCharLimit: 6000}
}

// Summarizer produces ≤50-char Chinese summaries with a fallback.
type Summarizer struct {
	client     *openai.Client
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger

	mu           sync.Mutex
	contentCache map[string]string
}

// New creates a Summarizer. client may be nil, which forces the fallback
// path. httpClient may be nil to disable full-text fetching.
func New(client *openai.Client, httpClient *http.Client, cfg Config, logger *slog.Logger) *Summarizer {
	if cfg.SourceCharLimit <= 0 {
		cfg.SourceCharLimit = 6000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		client:       client,
		httpClient:   httpClient,
		cfg:          cfg,
		logger:       logger,
		contentCache: make(map[string]string),
	}
}

// Summarize produces the summary for one article. Transport and model errors
// degrade silently to the fallback.
func (s *Summarizer) Summarize(ctx context.Context, article entity.RawArticle) Result {
	if s.client == nil {
		return s.fallback(article)
	}

	body := s.articleBody(ctx, article)
	prompt := fmt.Sprintf(
		"请将以下文章信息总结为一句30-50字的中文短摘要，仅输出摘要本身。\n标题：%s\n正文片段：%s",
		article.Title, text.TruncateRunes(body, s.cfg.SourceCharLimit))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.ChatModel,
		Temperature: 0.2,
		MaxTokens:   120,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "你是精炼的中文信息摘要助手。"},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		s.logger.Debug("llm summary failed, using fallback",
			slog.String("url", article.URL),
			slog.Any("error", err))
		return s.fallback(article)
	}

	normalized := NormalizeSummary(resp.Choices[0].Message.Content, article)
	metrics.RecordSummary(false)
	return Result{SummaryText: normalized, Model: s.cfg.ChatModel}
}

// articleBody returns the readable full text for the article URL, cached per
// URL; the stored excerpt serves when fetching fails.
func (s *Summarizer) articleBody(ctx context.Context, article entity.RawArticle) string {
	if article.URL == "" || s.httpClient == nil {
		return article.ContentExcerpt
	}

	s.mu.Lock()
	cached, ok := s.contentCache[article.URL]
	s.mu.Unlock()
	if ok {
		return cached
	}

	body := article.ContentExcerpt
	raw, err := httpx.Get(ctx, s.httpClient, article.URL, httpx.AcceptHTML, nil)
	if err == nil {
		if parsed, parseErr := url.Parse(article.URL); parseErr == nil {
			if page, readErr := readability.FromReader(strings.NewReader(string(raw)), parsed); readErr == nil {
				if text := strings.TrimSpace(page.TextContent); text != "" {
					body = text
				}
			}
		}
	}

	s.mu.Lock()
	s.contentCache[article.URL] = body
	s.mu.Unlock()
	return body
}

func (s *Summarizer) fallback(article entity.RawArticle) Result {
	metrics.RecordSummary(true)
	basis := strings.TrimSpace(article.ContentExcerpt)
	if basis == "" {
		basis = strings.TrimSpace(article.Title)
	}
	if basis == "" {
		basis = "文章信息较少，建议打开原文查看完整内容。"
	}
	return Result{
		SummaryText:  NormalizeSummary(basis, article),
		Model:        entity.SummaryFallbackModel,
		UsedFallback: true,
	}
}
