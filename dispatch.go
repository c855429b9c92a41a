package main

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// chatSender is the part of the Bot API client the dispatcher needs.
type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Dispatcher delivers final artifacts and user-facing text. The upload
// client is chosen by the route recorded on the job: the standard
// api.telegram.org client or the one bound to the local gateway.
type Dispatcher struct {
	standard chatSender
	extended chatSender
}

func NewDispatcher(standard, extended chatSender) *Dispatcher {
	return &Dispatcher{standard: standard, extended: extended}
}

// Deliver uploads the artifact to the requesting chat. Returns the sent
// video's file ID for the user memory.
func (d *Dispatcher) Deliver(ctx context.Context, job *VideoJob, result *TranscodeResult) (string, error) {
	// A cancelled job must not produce a partial upload.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sender := d.standard
	if job.Route == RouteExtended {
		if d.extended == nil {
			return "", &ConfigError{
				Key:    "TELEGRAM_LOCAL_API_URL",
				Reason: "extended route selected but no gateway client",
			}
		}
		sender = d.extended
	}

	video := tgbotapi.NewVideo(job.ChatID, tgbotapi.FilePath(result.Path))
	video.Caption = deliveryCaption(job)
	video.Duration = int(result.Duration.Seconds())
	video.SupportsStreaming = true
	video.ReplyToMessageID = job.ReplyTo
	if result.Thumbnail != "" {
		video.Thumb = tgbotapi.FilePath(result.Thumbnail)
	}

	sent, err := sender.Send(video)
	if err != nil {
		return "", &DeliveryError{Route: job.Route, Err: err}
	}
	log.Info().Str("jobId", job.ID).Str("route", string(job.Route)).Msg("successfully delivered the artifact")

	if sent.Video != nil {
		return sent.Video.FileID, nil
	}
	return "", nil
}

// SendText always goes through the standard client; error and info
// messages never need the extended path.
func (d *Dispatcher) SendText(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	if _, err := d.standard.Send(msg); err != nil {
		log.Error().Err(err).Int64("chatId", chatID).Msg("failed to send the message")
	}
}

// EditProgress updates the placeholder message on stage transitions.
func (d *Dispatcher) EditProgress(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := d.standard.Send(edit); err != nil {
		log.Debug().Err(err).Int64("chatId", chatID).Msg("failed to edit the progress message")
	}
}

// DeleteProgress removes the placeholder once the artifact is delivered.
func (d *Dispatcher) DeleteProgress(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := d.standard.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Debug().Err(err).Int64("chatId", chatID).Msg("failed to delete the progress message")
	}
}

func deliveryCaption(job *VideoJob) string {
	if job.TrimEnd > 0 {
		return fmt.Sprintf("✅ Clipped from %s to %s.",
			clock(job.TrimStart), clock(job.TrimEnd))
	}
	return "✅ Here is your video."
}

func clock(seconds int) string {
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// newExtendedClient builds the Bot API client for the local gateway.
func newExtendedClient(token, gatewayURL string) (*tgbotapi.BotAPI, error) {
	endpoint := gatewayURL + "/bot%s/%s"
	client, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "local gateway client")
	}
	return client, nil
}
