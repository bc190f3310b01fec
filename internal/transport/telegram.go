// Package transport is the only place that talks to the chat backend.
package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Result classifies one delivery attempt. Transient failures are retried
// on the next sweep; permanent ones are logged and left unsent too. A
// failed delivery is never demoted to "delivered".
type Result int

const (
	Delivered Result = iota
	TransientFailure
	PermanentFailure
)

func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	}
	return "unknown"
}

const sendTimeout = 10 * time.Second

type Telegram struct {
	api *tgbotapi.BotAPI
	log *logrus.Logger
}

// NewTelegram builds the adapter around a bot API client with a bounded
// request timeout.
func NewTelegram(token string, log *logrus.Logger) (*Telegram, error) {
	client := &http.Client{Timeout: sendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &Telegram{api: api, log: log}, nil
}

// NewTelegramWithAPI wraps an existing client, sharing it with the bot
// update loop.
func NewTelegramWithAPI(api *tgbotapi.BotAPI, log *logrus.Logger) *Telegram {
	return &Telegram{api: api, log: log}
}

// Send delivers text to one recipient. The context bounds nothing here
// beyond an early bail-out; the HTTP client enforces the wire timeout.
func (t *Telegram) Send(ctx context.Context, recipientID int64, text string) Result {
	if ctx.Err() != nil {
		return TransientFailure
	}

	msg := tgbotapi.NewMessage(recipientID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	_, err := t.api.Send(msg)
	result := Classify(err)
	if result == PermanentFailure {
		t.log.WithFields(logrus.Fields{
			"recipient": recipientID,
			"error":     err.Error(),
		}).Warn("permanent delivery failure")
	}
	return result
}

// Classify maps a bot API error onto a delivery outcome. Client errors
// (unknown chat, malformed message) are permanent; rate limits, server
// errors and network faults are transient.
func Classify(err error) Result {
	if err == nil {
		return Delivered
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return PermanentFailure
		}
		return TransientFailure
	}
	return TransientFailure
}
