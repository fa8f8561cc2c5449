package service

import (
	"context"
	"fmt"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ChatMessage 一条对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest OpenAI Chat Completions 请求
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatCompletionResponse OpenAI Chat Completions 响应
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// ChatClient OpenAI 聊天补全客户端（API key 只存在服务端）
type ChatClient struct {
	httpClient  *resty.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewChatClient 创建聊天客户端
func NewChatClient(cfg *config.ChatConfig, logger *zap.Logger) *ChatClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ChatClient{
		httpClient:  client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Complete 发起一次补全，返回回复文本和实际使用的模型
func (c *ChatClient) Complete(ctx context.Context, messages []ChatMessage) (reply string, model string, err error) {
	request := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var response chatCompletionResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/chat/completions")
	if err != nil {
		c.logger.Error("Chat completion call failed", zap.Error(err))
		return "", "", fmt.Errorf("chat completion call failed: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("Chat completion API error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", "", fmt.Errorf("chat completion API error: status %d", resp.StatusCode())
	}
	if len(response.Choices) == 0 {
		return "", "", fmt.Errorf("chat completion returned no choices")
	}

	model = response.Model
	if model == "" {
		model = c.model
	}
	return response.Choices[0].Message.Content, model, nil
}
