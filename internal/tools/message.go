package tools

import (
	"context"
	"fmt"
)

// ============================================================
// message
// ============================================================

// MessageTool lets the agent send a message to an arbitrary channel/chat,
// independent of the reply it's already composing for the current turn —
// used for proactive notifications (cron results, heartbeat alerts).
type MessageTool struct {
	send func(ctx context.Context, channel, chatID, content string) error
}

func NewMessageTool() *MessageTool { return &MessageTool{} }

func (t *MessageTool) SetChannelSender(send func(ctx context.Context, channel, chatID, content string) error) {
	t.send = send
}

func (t *MessageTool) Name() string { return "message" }
func (t *MessageTool) Description() string {
	return "Send a message to a channel/chat, outside the current reply. Use for proactive notifications."
}

func (t *MessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Target channel name (e.g. telegram, discord)",
			},
			"chat_id": map[string]interface{}{
				"type":        "string",
				"description": "Target chat id within the channel",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Message text to send",
			},
		},
		"required": []string{"channel", "chat_id", "content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.send == nil {
		return ErrorResult("channel sender not available")
	}
	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)
	content, _ := args["content"].(string)
	if channel == "" || chatID == "" || content == "" {
		return ErrorResult("channel, chat_id, and content are required")
	}
	if err := t.send(ctx, channel, chatID, content); err != nil {
		return ErrorResult(fmt.Sprintf("send failed: %v", err))
	}
	return SilentResult(fmt.Sprintf("message sent to %s/%s", channel, chatID))
}
