package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const chatSystemPrompt = "You are a concise assistant that helps users with the Riada Care System dashboard, alerts and devices."

// 会话历史只保留最近若干条，避免上下文无限增长
const chatHistoryLimit = 20

const chatConversationKeyPrefix = "chat:conversation:"

// ChatService 聊天代理 + 护理记录审核
// 会话历史放在带 TTL 的键值缓存里，不用进程内全局状态
type ChatService struct {
	client     *ChatClient
	kv         store.KV
	historyTTL time.Duration
	logger     *zap.Logger
}

// NewChatService 创建聊天服务
func NewChatService(client *ChatClient, kv store.KV, historyTTL time.Duration, logger *zap.Logger) *ChatService {
	return &ChatService{
		client:     client,
		kv:         kv,
		historyTTL: historyTTL,
		logger:     logger,
	}
}

// Chat 处理一轮对话
// conversationID 为空时开启新会话；返回回复、会话 ID 和实际模型
func (s *ChatService) Chat(ctx context.Context, conversationID, message string) (reply, convID, model string, err error) {
	if strings.TrimSpace(message) == "" {
		return "", "", "", fmt.Errorf("%w: message", ErrMissingField)
	}

	convID = conversationID
	if convID == "" {
		convID = uuid.New().String()
	}

	history, err := s.loadHistory(ctx, convID)
	if err != nil {
		return "", "", "", err
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: chatSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: message})

	reply, model, err = s.client.Complete(ctx, messages)
	if err != nil {
		return "", "", "", err
	}

	history = append(history,
		ChatMessage{Role: "user", Content: message},
		ChatMessage{Role: "assistant", Content: reply},
	)
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}
	if err := s.saveHistory(ctx, convID, history); err != nil {
		// 缓存失败不影响本轮回复
		s.logger.Warn("Failed to save conversation history", zap.Error(err))
	}

	return reply, convID, model, nil
}

func (s *ChatService) loadHistory(ctx context.Context, convID string) ([]ChatMessage, error) {
	raw, err := s.kv.Get(ctx, chatConversationKeyPrefix+convID)
	if errors.Is(err, store.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	var history []ChatMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		s.logger.Warn("Discarding corrupt conversation history", zap.String("conversation_id", convID))
		return nil, nil
	}
	return history, nil
}

func (s *ChatService) saveHistory(ctx context.Context, convID string, history []ChatMessage) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, chatConversationKeyPrefix+convID, string(raw), s.historyTTL)
}

// NoteCheckRule 一条审核规则
type NoteCheckRule struct {
	Label string `json:"label"`
}

// NoteCheckItem 单条审核结论
type NoteCheckItem struct {
	Rule    string `json:"rule"`
	Comment string `json:"comment"`
}

// NoteCheckResult 审核结果：通过/未通过两组
type NoteCheckResult struct {
	Passed []NoteCheckItem `json:"passed"`
	Failed []NoteCheckItem `json:"failed"`
}

// noteCheckReply AI 返回的原始 JSON 结构
type noteCheckReply struct {
	Summary string `json:"summary"`
	Score   int    `json:"score"`
	Issues  []struct {
		Rule    string `json:"rule"`
		Passed  bool   `json:"passed"`
		Comment string `json:"comment"`
	} `json:"issues"`
}

// NoteCheck 审核一条护理记录
func (s *ChatService) NoteCheck(ctx context.Context, note string, checks []NoteCheckRule) (*NoteCheckResult, error) {
	if strings.TrimSpace(note) == "" || len(checks) == 0 {
		return nil, fmt.Errorf("%w: note and checks are required", ErrMissingField)
	}

	labels := make([]string, 0, len(checks))
	for _, c := range checks {
		labels = append(labels, c.Label)
	}

	prompt := fmt.Sprintf(
		"You are a clinical notes reviewer. Examine the following nurse note and evaluate it against these checks: %s.\n\n"+
			"Important: When determining patient identity, treat a name-like token (capitalized or lowercase) that is "+
			"immediately followed by an action verb such as \"woke up\", \"woke\", \"awoke\", \"had\", \"ate\", \"went\", "+
			"\"arrived\" as the patient's name and mark the Patient identification check as passed if such a pattern is present.\n\n"+
			"Note:\n%s\n\n"+
			"Respond with a JSON object exactly with keys: summary (one-sentence), score (0-100), issues "+
			"(array of {rule, passed:boolean, comment:string}). Do not include any extra commentary or additional fields.",
		strings.Join(labels, "; "), note)

	raw, _, err := s.client.Complete(ctx, []ChatMessage{
		{Role: "system", Content: chatSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseNoteCheckReply(raw)
	if err != nil {
		return nil, err
	}

	result := &NoteCheckResult{Passed: []NoteCheckItem{}, Failed: []NoteCheckItem{}}
	for _, issue := range parsed.Issues {
		passed := issue.Passed
		comment := issue.Comment
		// AI 没认出患者身份时用简单的姓名模式兜底
		if !passed && patientRulePattern.MatchString(issue.Rule) {
			if name := detectPatientName(note); name != "" {
				passed = true
				comment = strings.TrimSpace(comment + " Detected name in note: " + name)
			}
		}
		item := NoteCheckItem{Rule: issue.Rule, Comment: comment}
		if passed {
			result.Passed = append(result.Passed, item)
		} else {
			result.Failed = append(result.Failed, item)
		}
	}
	return result, nil
}

// parseNoteCheckReply 从模型回复里抠出 JSON（容忍 ``` 围栏和 HTML 标签）
func parseNoteCheckReply(raw string) (*noteCheckReply, error) {
	cleaned := htmlTagPattern.ReplaceAllString(raw, "\n")
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	first := strings.IndexByte(cleaned, '{')
	last := strings.LastIndexByte(cleaned, '}')
	if first == -1 || last <= first {
		return nil, fmt.Errorf("AI reply contains no JSON object")
	}

	var parsed noteCheckReply
	if err := json.Unmarshal([]byte(cleaned[first:last+1]), &parsed); err != nil {
		return nil, fmt.Errorf("AI returned malformed JSON: %w", err)
	}
	return &parsed, nil
}

var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]*>`)
	patientRulePattern = regexp.MustCompile(`(?i)patient`)

	// 姓名启发式：名字后面紧跟动作动词，或 "Name: xxx"，或记录开头的词
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b([A-Za-z]{2,})\b\s+(?:woke up|woke|awoke|had|ate|went|arrived)`),
		regexp.MustCompile(`(?i)name[:\s]+([A-Za-z]{2,})`),
		regexp.MustCompile(`(?i)^\s*([A-Za-z]{2,})\b`),
	}
)

func detectPatientName(note string) string {
	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(note); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
