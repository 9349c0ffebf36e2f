package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Requester issues raw Bot API calls. *tgbotapi.BotAPI implements it.
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// RegisterWebhook points Telegram at webhookURL. A non-empty secret is sent
// back by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func RegisterWebhook(api Requester, webhookURL, secret string) error {
	params := tgbotapi.Params{"url": webhookURL}
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["message"]`

	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// ClearWebhook removes any registered webhook so long polling can start.
func ClearWebhook(api Requester, dropPending bool) error {
	params := tgbotapi.Params{"drop_pending_updates": strconv.FormatBool(dropPending)}
	if _, err := api.MakeRequest("deleteWebhook", params); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
