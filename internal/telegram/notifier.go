// File: internal/telegram/notifier.go
// ============================================
package telegram

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers operator messages over the Telegram bot API.
// Best-effort: every failure is logged and swallowed, never escalated.
type Notifier struct {
	botToken      string
	chatID        string
	enabled       bool
	symbol        string
	localCurrency string
	client        *http.Client
	logger        *zap.SugaredLogger
}

func NewNotifier(botToken, chatID string, enabled bool, symbol, localCurrency string, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{
		botToken:      botToken,
		chatID:        chatID,
		enabled:       enabled,
		symbol:        symbol,
		localCurrency: localCurrency,
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

func (n *Notifier) sendMessage(message string) {
	if !n.enabled {
		return
	}

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)

	data := url.Values{}
	data.Set("chat_id", n.chatID)
	data.Set("text", message)
	data.Set("parse_mode", "HTML")
	data.Set("disable_web_page_preview", "true")

	resp, err := n.client.PostForm(apiURL, data)
	if err != nil {
		n.logger.Warnf("❌ Telegram API error: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		n.logger.Warnf("❌ Telegram API response (%d): %s", resp.StatusCode, string(body))
	}
}

func (n *Notifier) NotifyStart() {
	msg := "🤖 <b>Tape Bot Started</b>\n\n"
	msg += fmt.Sprintf("📊 Watching <b>%s</b> order flow and price action\n", n.symbol)
	msg += "✅ Entries, exits and risk stops will be reported here"
	n.sendMessage(msg)
}

func (n *Notifier) NotifyEntry(price, quantity, costBasisLocal float64) {
	msg := "✅ <b>COMPRA EXECUTADA</b>\n\n"
	msg += fmt.Sprintf("Symbol: <b>%s</b>\n", n.symbol)
	msg += fmt.Sprintf("Entry: <code>%.2f</code>\n", price)
	msg += fmt.Sprintf("Quantity: <code>%.8f</code>\n", quantity)
	msg += fmt.Sprintf("Cost basis: <b>%.2f %s</b>", costBasisLocal, n.localCurrency)
	n.sendMessage(msg)
}

func (n *Notifier) NotifyExit(reason string, price, pnlLocal float64, pnlKnown bool) {
	emoji := "⚠️"
	if pnlKnown && pnlLocal >= 0 {
		emoji = "💰"
	}

	msg := fmt.Sprintf("%s <b>VENDA EXECUTADA</b>\n\n", emoji)
	msg += fmt.Sprintf("Symbol: <b>%s</b>\n", n.symbol)
	msg += fmt.Sprintf("Exit: <code>%.2f</code>\n", price)
	if pnlKnown {
		msg += fmt.Sprintf("PnL: <b>%.2f %s</b>\n", pnlLocal, n.localCurrency)
	} else {
		msg += "PnL: <i>unavailable (FX rate missing)</i>\n"
	}
	msg += fmt.Sprintf("\n💡 Reason: %s", reason)
	n.sendMessage(msg)
}

func (n *Notifier) NotifySessionReport(side string, sessionPnL float64, cycles uint64) {
	emoji := "📊"
	if sessionPnL > 0 {
		emoji = "💰"
	} else if sessionPnL < 0 {
		emoji = "📉"
	}

	msg := fmt.Sprintf("%s <b>Session Report</b>\n\n", emoji)
	msg += fmt.Sprintf("Position: <b>%s</b>\n", side)
	msg += fmt.Sprintf("Realized PnL: <b>%.2f %s</b>\n", sessionPnL, n.localCurrency)
	msg += fmt.Sprintf("Cycles run: %d", cycles)
	n.sendMessage(msg)
}

func (n *Notifier) NotifyError(errorMsg string) {
	n.sendMessage(fmt.Sprintf("⚠️ <b>Error Alert</b>\n\n%s", errorMsg))
}
