package telegram

import (
	"fmt"
	"strings"

	app "vision-qc/internal/application"
	"vision-qc/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот контроля качества деталей.

📸 Отправьте фото детали: я найду дефекты и либо приму решение сам, либо отправлю снимок на ручную проверку.

📋 Команды:
/check — начать проверку детали
/pending — инспекции, ждущие проверки
/review <id> [заметка] — подтвердить инспекцию
/reject <id> [заметка] — отклонить разметку инспекции
/stats — статистика
/drift — проверить дрейф модели
/retrain — дообучить модель на проверенных данных
/threshold [значение] — показать или изменить порог
/audit — последние записи журнала
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото детали
2️⃣ Бот найдёт дефекты и сравнит уверенность с порогом
3️⃣ Уверенный результат принимается автоматически, остальные попадают в /pending
4️⃣ Проверьте спорные инспекции командой /review, из них соберётся датасет для /retrain

💡 Рекомендации:
• Снимайте при хорошем освещении
• Используйте однотонный фон
• Фото должно быть чётким`

	msgAwaitingPhoto   = "📸 Отправьте фото детали для проверки на дефекты."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото детали для проверки на дефекты."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgNoDefects       = "✅ Дефекты не обнаружены."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgPoorQuality     = "📷 Снимок плохого качества, переснимите деталь при ровном освещении."
	msgInternalError   = "⚠️ Внутренняя ошибка. Попробуйте позже."
	msgNoPending       = "✅ Нет инспекций, ожидающих проверки."
	msgReviewUsage     = "Использование: /review <id> [заметка]"
	msgRejectUsage     = "Использование: /reject <id> [заметка]"
	msgAwaitingNotes   = "✍️ Напишите заметку к инспекции #%d или отправьте «-», чтобы подтвердить без заметки."
	msgNotFound        = "🔍 Инспекция #%d не найдена."
	msgReviewed        = "✅ Инспекция #%d проверена."
	msgAlreadyReviewed = "ℹ️ Инспекцию #%d уже проверил другой пользователь."
	msgRetrainStarted  = "🏋️ Дообучение запущено, это может занять время."
	msgRetrainBusy     = "⏳ Дообучение уже идёт."
	msgThresholdBad    = "⚠️ Порог должен быть числом от 0 до 1."
	msgThresholdSet    = "🎚 Порог изменён: %s"
	msgThreshold       = "🎚 Текущий порог: %.2f"
	msgEmptyAudit      = "Журнал пуст."
)

func formatInspection(out *app.InspectionOutput) string {
	var b strings.Builder
	s := out.Summary

	switch s.Status {
	case entity.StatusAutomated:
		fmt.Fprintf(&b, "🤖 Инспекция #%d принята автоматически", s.ID)
	default:
		fmt.Fprintf(&b, "👀 Инспекция #%d отправлена на ручную проверку", s.ID)
	}
	fmt.Fprintf(&b, "\nУверенность: %.2f (порог %.2f)", s.MaxConfidence, s.ThresholdUsed)

	if len(out.Detections) == 0 {
		b.WriteString("\n" + msgNoDefects)
	} else {
		b.WriteString("\n\nНайдено:")
		for i, d := range out.Detections {
			fmt.Fprintf(&b, "\n%d. %s — %.2f", i+1, d.Label, d.Confidence)
		}
	}

	if s.Status == entity.StatusPendingReview {
		fmt.Fprintf(&b, "\n\nПодтвердить: /review %d", s.ID)
	}
	return b.String()
}

func formatPending(items []entity.Inspection, limit int) string {
	if len(items) == 0 {
		return msgNoPending
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👀 Ожидают проверки: %d", len(items))
	for i, insp := range items {
		if i == limit {
			fmt.Fprintf(&b, "\n… и ещё %d", len(items)-limit)
			break
		}
		fmt.Fprintf(&b, "\n#%d — уверенность %.2f, %s", insp.ID, insp.MaxConfidence, insp.CreatedAt.Format("02.01 15:04"))
	}
	return b.String()
}

func formatStats(s entity.Stats) string {
	return fmt.Sprintf("📊 Всего: %d\n🤖 Автоматически: %d\n👀 Ожидают: %d\n✅ Проверено: %d",
		s.Total, s.Automated, s.Pending, s.Reviewed)
}

func formatDrift(r entity.DriftReport) string {
	if r.Insufficient {
		return "📉 " + r.Message
	}
	status := "✅ Дрейфа нет"
	if r.DriftDetected {
		status = "🚨 Обнаружен дрейф"
	}
	return fmt.Sprintf("%s\nНедавние: %.2f\nБаза: %.2f\nПадение: %.2f\nВыборка: %d",
		status, r.RecentAvg, r.BaselineAvg, r.DriftScore, r.SampleCount)
}

func formatRetrain(r entity.RetrainResult) string {
	if !r.Success {
		return "❌ " + r.Message
	}
	return fmt.Sprintf("✅ %s\nВеса: %s", r.Message, r.ArtifactPath)
}

func formatAudit(entries []entity.AuditEntry) string {
	if len(entries) == 0 {
		return msgEmptyAudit
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s [%s] %s", e.Timestamp.Format("02.01 15:04:05"), e.Action, e.Details)
	}
	return b.String()
}
