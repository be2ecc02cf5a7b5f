package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/oarkflow/mailrise/internal/router"
)

// jsonEndpoint maps json:// to http:// and jsons:// to https://, keeping
// credentials, host, path and query.
func jsonEndpoint(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	out := *u
	out.Scheme = "http"
	if strings.EqualFold(u.Scheme, "jsons") {
		out.Scheme = "https"
	}
	return out.String(), nil
}

// sendJSON posts the notification as a generic JSON document.
func (d *Dispatcher) sendJSON(ctx context.Context, id, raw string, n router.Notification) error {
	endpoint, err := jsonEndpoint(raw)
	if err != nil {
		return err
	}

	attachments := make([]map[string]string, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		attachments = append(attachments, map[string]string{
			"filename": a.Name,
			"mimetype": a.ContentType,
			"base64":   base64.StdEncoding.EncodeToString(a.Data),
		})
	}

	payload := map[string]interface{}{
		"version":     "1.0",
		"id":          id,
		"title":       n.Title,
		"message":     n.Body,
		"type":        string(n.Type),
		"format":      string(n.BodyFormat),
		"attachments": attachments,
	}
	return d.postJSON(ctx, endpoint, payload)
}

// sendDiscord posts an embed to discord://webhook_id/webhook_token.
func (d *Dispatcher) sendDiscord(ctx context.Context, raw string, n router.Notification) error {
	tokens := pathTokens(raw)
	if len(tokens) < 2 {
		return fmt.Errorf("expected discord://webhook_id/webhook_token")
	}

	payload := map[string]interface{}{
		"username": n.Asset.Name(),
		"embeds": []map[string]interface{}{{
			"title":       n.Title,
			"description": n.Body,
			"color":       colorValue(n.Asset.Color(n.Type)),
		}},
	}
	return d.postJSON(ctx, d.discordBase+"/"+tokens[0]+"/"+tokens[1], payload)
}

// sendSlack posts an attachment to slack://TokenA/TokenB/TokenC.
func (d *Dispatcher) sendSlack(ctx context.Context, raw string, n router.Notification) error {
	tokens := pathTokens(raw)
	if len(tokens) < 3 {
		return fmt.Errorf("expected slack://TokenA/TokenB/TokenC")
	}

	payload := map[string]interface{}{
		"username": n.Asset.Name(),
		"attachments": []map[string]interface{}{{
			"title":  n.Title,
			"text":   n.Body,
			"color":  n.Asset.Color(n.Type),
			"footer": n.Asset.Name(),
		}},
	}
	return d.postJSON(ctx, d.slackBase+"/"+strings.Join(tokens[:3], "/"), payload)
}

// sendTelegram sends a message to every chat of tgram://bot_token/chat_id[/chat_id...].
func (d *Dispatcher) sendTelegram(ctx context.Context, raw string, n router.Notification) error {
	tokens := pathTokens(raw)
	if len(tokens) < 2 {
		return fmt.Errorf("expected tgram://bot_token/chat_id")
	}

	text := n.Title + "\r\n" + n.Body
	parseMode := ""
	if n.BodyFormat == router.FormatHTML {
		text = "<b>" + html.EscapeString(n.Title) + "</b>\r\n" + n.Body
		parseMode = "HTML"
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", d.telegramBase, tokens[0])
	for _, chatID := range tokens[1:] {
		payload := map[string]interface{}{
			"chat_id": chatID,
			"text":    text,
		}
		if parseMode != "" {
			payload["parse_mode"] = parseMode
		}
		if err := d.postJSON(ctx, endpoint, payload); err != nil {
			return fmt.Errorf("chat %s: %w", chatID, err)
		}
	}
	return nil
}

// colorValue converts a #rrggbb color to the integer form Discord expects.
func colorValue(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
