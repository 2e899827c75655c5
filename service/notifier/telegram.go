package notifier

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

type telegramService struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New returns a telegram notifier when a token and chat are configured and
// a no-op notifier otherwise.
func New(cfgsvc config.IService) (IService, error) {
	if cfgsvc.GetTelegramToken() == "" || cfgsvc.GetTelegramChatID() == 0 {
		return NewNoop(), nil
	}
	return NewTelegram(cfgsvc.GetTelegramToken(), tgbotapi.APIEndpoint, cfgsvc.GetTelegramChatID())
}

// NewTelegram authenticates against endpoint, a format string such as
// tgbotapi.APIEndpoint.
func NewTelegram(token, endpoint string, chatID int64) (IService, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, xerrors.Errorf("authorizing telegram bot: %w", err)
	}

	lgr.Logger.Info("telegram notifier authorized",
		slog.String("bot", api.Self.UserName),
		slog.Int64("chat", chatID),
	)

	return &telegramService{
		api:    api,
		chatID: chatID,
	}, nil
}

func (svc *telegramService) Notify(evt model.DetectionEvent, image []byte) error {
	caption := fmt.Sprintf("%s detected (%.0f%%, %d in frame)\n%s", evt.Label, evt.Confidence*100, evt.Count, evt.Filename)

	var msg tgbotapi.Chattable
	if len(image) > 0 {
		photo := tgbotapi.NewPhoto(svc.chatID, tgbotapi.FileBytes{Name: evt.Filename, Bytes: image})
		photo.Caption = caption
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(svc.chatID, caption)
	}

	if _, err := svc.api.Send(msg); err != nil {
		return xerrors.Errorf("sending telegram alert for %s: %w", evt.Filename, err)
	}
	return nil
}

func (svc *telegramService) Name() string {
	return "telegram"
}
