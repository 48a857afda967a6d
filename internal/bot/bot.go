// Package bot exposes the concierge over Telegram. Every incoming text is
// answered as a single-turn conversation.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/travel-concierge/internal/chat"
	"github.com/xaenox/travel-concierge/internal/completion"
	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

const (
	welcomeText = `Merhaba! Ben seyahat asistanınızım ✈️
Bana gitmek istediğiniz yerleri, vize ve gezi planlarını ya da son seyahat haberlerini sorabilirsiniz.
Komutların listesi için /help yazın.`

	helpText = `Komutlar:
/start - Asistanı başlat
/help - Bu yardım mesajını göster

Örnek sorular:
- Yazın nereye gitmeliyim?
- Japonya hakkında bilgi ver
- Son seyahat haberleri neler?`

	msgNotConfigured = "Asistan şu anda yapılandırılmamış. Lütfen daha sonra tekrar deneyin."
	msgTimeout       = "Yanıt çok uzun sürdü. Lütfen sorunuzu tekrar gönderin."
	msgUnavailable   = "Yapay zeka servisine ulaşılamıyor. Lütfen daha sonra tekrar deneyin."
	msgFailed        = "Üzgünüm, şu anda yanıt veremiyorum. Lütfen daha sonra tekrar deneyin."
)

type Answerer interface {
	Answer(ctx context.Context, messages []models.ChatMessage) (*chat.Response, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   sender
	answerer Answerer
	siteURL  string
	logger   *zap.Logger
}

// New connects to Telegram with token. siteURL is the public site root used
// to build suggestion links; links are omitted when it is empty.
func New(token string, answerer Answerer, siteURL string, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:      api,
		sender:   api,
		answerer: answerer,
		siteURL:  strings.TrimRight(siteURL, "/"),
		logger:   logger,
	}, nil
}

// Start long-polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	resp, err := b.answerer.Answer(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: content},
	})
	if err != nil {
		b.logger.Error("Failed to answer message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, friendlyError(err))
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatReply(resp, b.siteURL))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = message.MessageID
	msg.DisableWebPagePreview = true

	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.sendMessage(message.Chat.ID, welcomeText)
	case "help":
		b.sendMessage(message.Chat.ID, helpText)
	default:
		b.sendMessage(message.Chat.ID, "Bilinmeyen komut. Komutlar için /help yazın.")
	}
}

// formatReply renders the answer and its suggestions as MarkdownV2.
func formatReply(resp *chat.Response, siteURL string) string {
	var sb strings.Builder
	sb.WriteString(escapeMarkdown(resp.Message))

	links := suggestionLinks(resp.Suggestions, siteURL)
	if len(links) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\n")
	if resp.Suggestions.Type == models.KindNews {
		sb.WriteString("*Haberler:*\n")
	} else {
		sb.WriteString("*Önerilen ülkeler:*\n")
	}
	for _, link := range links {
		sb.WriteString("• ")
		sb.WriteString(link)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func suggestionLinks(s *models.Suggestions, siteURL string) []string {
	if s == nil {
		return nil
	}

	var links []string
	switch items := s.Items.(type) {
	case []models.Country:
		for _, c := range items {
			links = append(links, markdownLink(c.Name, siteURL, "countries", c.Slug))
		}
	case []models.NewsItem:
		for _, n := range items {
			links = append(links, markdownLink(n.Title, siteURL, "news", n.Slug))
		}
	}
	return links
}

func markdownLink(text, siteURL, section, slug string) string {
	if siteURL == "" {
		return escapeMarkdown(text)
	}
	url := siteURL + "/" + section + "/" + slug
	return "[" + escapeMarkdown(text) + "](" + linkEscaper.Replace(url) + ")"
}

func friendlyError(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		return msgNotConfigured
	case errors.Is(err, completion.ErrTimeout):
		return msgTimeout
	case errors.Is(err, completion.ErrUnavailable):
		return msgUnavailable
	default:
		return msgFailed
	}
}

var (
	markdownEscaper = strings.NewReplacer(
		`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
		"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`, "=", `\=`,
		"|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
	)
	// Inside the (...) part of a MarkdownV2 link only ) and \ need escaping.
	linkEscaper = strings.NewReplacer(`\`, `\\`, ")", `\)`)
)

// escapeMarkdown escapes the characters reserved by Telegram MarkdownV2.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
