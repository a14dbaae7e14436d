package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "vision-qc/internal/application"
	"vision-qc/internal/container"
	"vision-qc/internal/domain/entity"
)

const (
	pendingListLimit = 10
	auditListLimit   = 10
)

// Bot представляет Telegram-бота
type Bot struct {
	api *tgbotapi.BotAPI
	c   *container.Container
	log *zap.Logger

	retraining sync.Mutex
	jobs       sync.WaitGroup
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log = log.Named("telegram")
	log.Info("authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api: api,
		c:   c,
		log: log,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx.
// Перед возвратом дожидается фоновых задач, например переобучения.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	defer b.jobs.Wait()
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.c.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Error("get user", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	// Заметка к инспекции, которую пользователь сейчас проверяет
	if user.State == entity.StateAwaitingReview && user.InspectionID != 0 {
		notes := strings.TrimSpace(msg.Text)
		if notes == "-" {
			notes = ""
		}
		b.setState(ctx, user, entity.StateMainMenu)
		b.submitReview(ctx, msg.Chat.ID, user.InspectionID, notes, true)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		b.setState(ctx, user, entity.StateAwaitingPhoto)
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "cancel":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(chatID, msgCancelled)

	case "pending":
		status := entity.StatusPendingReview
		items, err := b.c.InspectionService.ListInspections(ctx, status)
		if err != nil {
			b.replyError(chatID, "list pending", err)
			return
		}
		b.sendMessage(chatID, formatPending(items, pendingListLimit))

	case "review", "reject":
		verified := msg.Command() == "review"
		id, notes, ok := parseReviewArgs(args)
		if !ok {
			if verified {
				b.sendMessage(chatID, msgReviewUsage)
			} else {
				b.sendMessage(chatID, msgRejectUsage)
			}
			return
		}
		if notes == "" && verified {
			b.beginReview(ctx, msg, id)
			return
		}
		b.submitReview(ctx, chatID, id, notes, verified)

	case "stats":
		stats, err := b.c.InspectionService.Stats(ctx)
		if err != nil {
			b.replyError(chatID, "stats", err)
			return
		}
		b.sendMessage(chatID, formatStats(stats))

	case "drift":
		report, err := b.c.DriftMonitor.Detect(ctx)
		if err != nil {
			b.replyError(chatID, "drift", err)
			return
		}
		b.sendMessage(chatID, formatDrift(report))

	case "retrain":
		b.startRetrain(ctx, chatID)

	case "threshold":
		b.handleThreshold(ctx, chatID, args)

	case "audit":
		entries, err := b.c.Audit.List(ctx, auditListLimit)
		if err != nil {
			b.replyError(chatID, "audit", err)
			return
		}
		b.sendMessage(chatID, formatAudit(entries))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handlePhoto обрабатывает входящее фото
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, err := b.c.UserService.SetState(ctx, msg.From.ID, chatID, entity.StateProcessing); err != nil {
		b.log.Warn("set processing state", zap.Error(err))
	}
	defer func() {
		if _, err := b.c.UserService.Cancel(ctx, msg.From.ID, chatID); err != nil {
			b.log.Warn("reset user state", zap.Error(err))
		}
	}()

	b.sendMessage(chatID, msgProcessing)

	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.log.Error("download photo", zap.String("file_id", photo.FileID), zap.Error(err))
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	out, err := b.c.InspectionService.Inspect(ctx, photo.FileUniqueID+".jpg", imageData, nil)
	if errors.Is(err, app.ErrImageRejected) {
		b.sendMessage(chatID, msgPoorQuality+"\n"+err.Error())
		return
	}
	if err != nil {
		b.log.Error("inspect photo", zap.Int("bytes", len(imageData)), zap.Error(err))
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	if len(out.Highlighted) > 0 {
		b.sendPhoto(chatID, out.Highlighted, formatInspection(out))
		return
	}
	b.sendMessage(chatID, formatInspection(out))
}

func (b *Bot) beginReview(ctx context.Context, msg *tgbotapi.Message, id uint) {
	if _, err := b.c.InspectionService.Get(ctx, id); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgNotFound, id))
			return
		}
		b.replyError(msg.Chat.ID, "get inspection", err)
		return
	}

	if _, err := b.c.UserService.BeginReview(ctx, msg.From.ID, msg.Chat.ID, id); err != nil {
		b.replyError(msg.Chat.ID, "begin review", err)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgAwaitingNotes, id))
}

// submitReview сохраняет вердикт без изменения рамок и снимает ожидание заметки у всех проверяющих.
func (b *Bot) submitReview(ctx context.Context, chatID int64, id uint, notes string, verified bool) {
	err := b.c.InspectionService.SubmitReview(ctx, id, entity.Correction{Notes: notes, Verified: &verified})
	if errors.Is(err, app.ErrNotFound) {
		b.sendMessage(chatID, fmt.Sprintf(msgNotFound, id))
		return
	}
	if err != nil {
		b.replyError(chatID, "submit review", err)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf(msgReviewed, id))

	released, err := b.c.UserService.FinishReview(ctx, id)
	if err != nil {
		b.log.Warn("release reviewers", zap.Uint("inspection_id", id), zap.Error(err))
		return
	}
	for _, u := range released {
		if u.ChatID != chatID {
			b.sendMessage(u.ChatID, fmt.Sprintf(msgAlreadyReviewed, id))
		}
	}
}

// startRetrain запускает дообучение в фоне, чтобы не блокировать цикл обновлений.
func (b *Bot) startRetrain(ctx context.Context, chatID int64) {
	if !b.retraining.TryLock() {
		b.sendMessage(chatID, msgRetrainBusy)
		return
	}

	b.sendMessage(chatID, msgRetrainStarted)
	b.background(func() {
		defer b.retraining.Unlock()
		result := b.c.RetrainTrigger.Retrain(ctx)
		b.sendMessage(chatID, formatRetrain(result))
	})
}

// background запускает задачу, которую Run дождётся при остановке.
func (b *Bot) background(job func()) {
	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()
		job()
	}()
}

func (b *Bot) handleThreshold(ctx context.Context, chatID int64, args string) {
	if args == "" {
		threshold, err := b.c.ConfigService.Threshold(ctx)
		if err != nil {
			b.replyError(chatID, "read threshold", err)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgThreshold, threshold))
		return
	}

	err := b.c.ConfigService.Set(ctx, entity.ConfigConfidenceThreshold, args)
	if errors.Is(err, app.ErrInvalidThreshold) {
		b.sendMessage(chatID, msgThresholdBad)
		return
	}
	if err != nil {
		b.replyError(chatID, "set threshold", err)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf(msgThresholdSet, args))
}

func (b *Bot) setState(ctx context.Context, user *entity.User, state entity.UserState) {
	if _, err := b.c.UserService.SetState(ctx, user.ID, user.ChatID, state); err != nil {
		b.log.Warn("set user state", zap.String("state", string(state)), zap.Error(err))
	}
}

// parseReviewArgs разбирает "<id> [заметка]".
func parseReviewArgs(args string) (uint, string, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	notes := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), fields[0]))
	return uint(id), notes, true
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

func (b *Bot) replyError(chatID int64, op string, err error) {
	b.log.Error(op, zap.Int64("chat_id", chatID), zap.Error(err))
	b.sendMessage(chatID, msgInternalError)
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendPhoto отправляет картинку с подписью
func (b *Bot) sendPhoto(chatID int64, data []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "inspection.jpg", Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("send photo", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
