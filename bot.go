package main

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const startText = `Hi! 🤖
Send me a video link and I will download and process it for you.
Use /help for details.`

const helpText = `🤖 I process videos:
• 📥 download a video from a link
• ✂️ cut a clip out of it
• 🧠 understand plain-language requests

Examples:
• https://youtube.com/watch?v=... — just download
• cut https://vimeo.com/123 from 1:30 to 2:45
• download https://... and trim from 10 to 20
• first 5 seconds of this video — reuses your last video

Time formats: "from 10 to 20", "from 1:30 to 2:45".
Use /cancel to abort the current request.`

// Bot is the request intake: it turns Telegram updates into VideoJobs
// and publishes them to the queue.
type Bot struct {
	api      *tgbotapi.BotAPI
	llm      *LLMClient
	queue    Queue
	memory   MemoryStore
	pipeline *Pipeline
	limit    chan struct{}
}

func NewBot(api *tgbotapi.BotAPI, llm *LLMClient, queue Queue, memory MemoryStore, pipeline *Pipeline, workers int) *Bot {
	return &Bot{
		api:      api,
		llm:      llm,
		queue:    queue,
		memory:   memory,
		pipeline: pipeline,
		limit:    make(chan struct{}, workers*2),
	}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	log.Info().Str("username", b.api.Self.UserName).Msg("bot is polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			message := update.Message
			go func() {
				b.limit <- struct{}{}
				defer func() { <-b.limit }()
				b.handleMessage(ctx, message)
			}()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}
	if fileID := uploadedVideoID(message); fileID != "" {
		b.handleUpload(ctx, message, fileID)
		return
	}
	if message.Text != "" {
		b.handleText(ctx, message)
	}
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.reply(message, startText)
	case "help":
		b.reply(message, helpText)
	case "cancel":
		if b.pipeline != nil && b.pipeline.Cancel(message.Chat.ID) {
			b.reply(message, "🛑 Cancelling your request...")
		} else {
			b.reply(message, "Nothing to cancel right now.")
		}
	default:
		b.reply(message, "Unknown command. Try /help.")
	}
}

// handleUpload resolves an uploaded video to its Bot API file link and
// queues it like any other source reference.
func (b *Bot) handleUpload(ctx context.Context, message *tgbotapi.Message, fileID string) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		log.Error().Err(err).Str("fileId", fileID).Msg("failed to resolve the uploaded file")
		b.reply(message, "❌ Could not read the uploaded file. Files over 20MB need a link instead.")
		return
	}
	b.enqueue(ctx, message, file.Link(b.api.Token), "", 0, 0)
}

func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) {
	intent := b.resolveIntent(ctx, message)
	if intent == nil {
		return
	}

	if intent.Confidence < 0.5 {
		b.reply(message, "🤔 I am not sure what you want me to do. Try /help for examples.")
		return
	}

	switch intent.Action {
	case ActionDownload:
		url := intent.VideoURL
		if url == "" {
			b.reply(message, "❌ I could not find a video link in your message.")
			return
		}
		b.enqueue(ctx, message, url, "", 0, 0)

	case ActionTrim, ActionDownloadAndTrim:
		if intent.StartTime == nil || intent.EndTime == nil {
			b.reply(message, "❌ I could not recognize the time range. Use formats like \"from 10 to 20\" or \"from 1:30 to 2:45\".")
			return
		}
		url := intent.VideoURL
		title := ""
		if url == "" && intent.UseLastVideo {
			memory := b.lastVideo(ctx, message.From.ID)
			if memory != nil {
				url = memory.URL
				title = memory.Title
			}
		}
		if url == "" {
			b.reply(message, "✂️ I need a video link to cut from, or send a video first and then ask to trim \"this video\".")
			return
		}
		b.enqueue(ctx, message, url, title, *intent.StartTime, *intent.EndTime)

	default:
		b.reply(message, "🤷 I did not get that. Try /help for examples.")
	}
}

// resolveIntent asks the LLM bridge first and falls back to the regex
// parser when the bridge is unavailable or fails.
func (b *Bot) resolveIntent(ctx context.Context, message *tgbotapi.Message) *Intent {
	if b.llm == nil {
		return fallbackIntent(message.Text)
	}

	memory := b.lastVideo(ctx, message.From.ID)
	intent, exchange, err := b.llm.ParseIntent(ctx, message.Text, memory)
	if err != nil {
		log.Warn().Err(err).Int64("userId", message.From.ID).Msg("llm intent parsing failed, using fallback")
		return fallbackIntent(message.Text)
	}
	log.Info().
		Str("action", intent.Action).
		Float64("confidence", intent.Confidence).
		Dur("latency", exchange.Latency).
		Msg("llm interpreted the request")
	return intent
}

func (b *Bot) lastVideo(ctx context.Context, userID int64) *VideoMemory {
	if b.memory == nil {
		return nil
	}
	memory, err := b.memory.Get(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("userId", userID).Msg("failed to read the user memory")
		return nil
	}
	return memory
}

func (b *Bot) enqueue(ctx context.Context, message *tgbotapi.Message, sourceURL, title string, trimStart, trimEnd int) {
	progress := tgbotapi.NewMessage(message.Chat.ID, "⏳ Queued, starting soon...")
	progress.ReplyToMessageID = message.MessageID
	sent, err := b.api.Send(progress)
	if err != nil {
		log.Error().Err(err).Int64("chatId", message.Chat.ID).Msg("failed to send the progress message")
	}

	job := &VideoJob{
		ID:                uuid.NewString(),
		ChatID:            message.Chat.ID,
		UserID:            message.From.ID,
		ReplyTo:           message.MessageID,
		ProgressMessageID: sent.MessageID,
		SourceURL:         sourceURL,
		TrimStart:         trimStart,
		TrimEnd:           trimEnd,
		Title:             title,
		CreatedAt:         time.Now(),
		Status:            JobStatusQueued,
	}
	if err := b.queue.Publish(ctx, job); err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("failed to publish the job")
		b.reply(message, "❌ Could not queue your request. Try again in a minute.")
		return
	}
	log.Info().Str("jobId", job.ID).Str("url", sourceURL).Int64("chatId", message.Chat.ID).Msg("job queued")
}

func (b *Bot) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chatId", message.Chat.ID).Msg("failed to send the reply")
	}
}

// uploadedVideoID extracts the file ID of an uploaded video, if any.
func uploadedVideoID(message *tgbotapi.Message) string {
	if message.Video != nil {
		return message.Video.FileID
	}
	if message.Document != nil && len(message.Document.MimeType) >= 5 &&
		message.Document.MimeType[:5] == "video" {
		return message.Document.FileID
	}
	return ""
}
