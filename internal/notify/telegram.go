package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signal_bot/internal/models"
)

// telegramLimit: лимит длины сообщения Telegram с запасом.
const telegramLimit = 4000

type TelegramConfig struct {
	Token string `yaml:"token"`
	Tiers []Tier `yaml:"tiers" validate:"dive"`
}

// Tier: аудитория; отличается только количеством сигналов.
type Tier struct {
	Name         string `yaml:"name" validate:"required"`
	ChatID       int64  `yaml:"chat_id" validate:"required"`
	MaxPerMarket int    `yaml:"max_per_market" validate:"gte=0"`
}

type sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

type Telegram struct {
	bot   sender
	tiers []Tier
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(b, cfg.Tiers), nil
}

func newTelegram(bot sender, tiers []Tier) *Telegram {
	return &Telegram{bot: bot, tiers: tiers}
}

func (t *Telegram) Name() string { return "telegram" }

// Notify: по сообщению на tier. Цикл без сигналов не шлём.
func (t *Telegram) Notify(ctx context.Context, report models.CycleReport) error {
	if report.Total() == 0 {
		return nil
	}
	for _, tier := range t.tiers {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := FormatReport(capPerMarket(report, tier.MaxPerMarket), tier.Name)
		for _, chunk := range splitMessage(text, telegramLimit) {
			msg := tgbot.NewMessage(tier.ChatID, chunk)
			msg.ParseMode = tgbot.ModeMarkdown
			msg.DisableWebPagePreview = true
			if _, err := t.bot.Send(msg); err != nil {
				return fmt.Errorf("tier %s: %w", tier.Name, err)
			}
		}
	}
	return nil
}

// runeCut: граница не дальше limit, не посреди UTF-8 символа.
func runeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

// splitMessage режет по пустым строкам, чтобы не рвать блок сигнала.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
	)
	for _, block := range strings.SplitAfter(text, "\n\n") {
		if cur.Len()+len(block) > limit && cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
		for len(block) > limit {
			cut := runeCut(block, limit)
			out = append(out, block[:cut])
			block = block[cut:]
		}
		cur.WriteString(block)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
