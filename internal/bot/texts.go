package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/earlybot/core/telegram/format"
	"github.com/m3rciful/earlybot/internal/broadcast"
	"github.com/m3rciful/earlybot/internal/report"
	"github.com/m3rciful/earlybot/internal/subscriber"
)

const welcomeText = `🏆 <b>Добро пожаловать в Нейроставки!</b>

Вы на пороге получения доступа к AI-сервису прогнозов на спорт:

✅ 3 прогноза ежедневно, 7 дней в неделю
✅ 87% точность прогнозов
✅ ИИ обучен на 30 088 матчей
✅ Анализ 6 видов спорта

🚀 <b>Сервис находится на финальной стадии тестирования!</b>

Как только мы откроем ранний доступ — вы узнаете первыми прямо здесь, в этом боте.

📊 Хотите помочь нам сделать сервис лучше? Расскажите о своих предпочтениях!`

const welcomeBackText = `👋 <b>С возвращением!</b>

Вы уже записаны на ранний доступ. Мы обязательно сообщим, когда сервис будет готов!`

const interestsText = `🎯 <b>Выберите виды спорта, которые вас интересуют:</b>

Нажимайте на кнопки для выбора. Когда закончите — нажмите «Готово».`

const regionText = `🌍 <b>Какие матчи вас интересуют?</b>

Выберите регион для прогнозов:`

const completeText = `🎉 <b>Отлично! Ваши предпочтения сохранены.</b>

Мы оповестим вас первыми, когда откроем ранний доступ!

💡 <i>Не отписывайтесь от бота, чтобы не пропустить уведомление.</i>`

const skippedText = `✅ <b>Вы успешно записаны на ранний доступ!</b>

Мы оповестим вас первыми, когда откроем доступ к сервису.

💡 <i>Не отписывайтесь от бота, чтобы не пропустить уведомление.</i>`

const (
	savedToast        = "Сохранено! 🎉"
	sessionLostToast  = "Выбор устарел. Отправьте /start, чтобы начать заново."
	unauthorizedText  = "⛔ Эта команда доступна только администраторам."
	genericFailure    = "⚠️ Что-то пошло не так. Попробуйте позже."
	noRecipientsText  = "❌ Нет активных подписчиков для рассылки."
	unknownActionText = "Действие больше недоступно"
	slowDownToast     = "Не так быстро 🙂"
	startHintText     = "Отправьте /start, чтобы начать."
)

const broadcastUsageText = `📢 <b>Рассылка сообщений</b>

Чтобы сделать рассылку:
1. Напишите сообщение, которое хотите разослать
2. Ответьте на него командой /broadcast

Сообщение будет отправлено всем активным подписчикам.`

const helpText = `🔧 <b>Админ-команды</b>

/stats — Статистика подписчиков
/broadcast — Рассылка сообщений (ответьте на сообщение)
/help — Эта справка`

var interestLabels = map[subscriber.Interest]string{
	subscriber.InterestFootball:   "Футбол",
	subscriber.InterestHockey:     "Хоккей",
	subscriber.InterestBasketball: "Баскетбол",
	subscriber.InterestTennis:     "Теннис",
	subscriber.InterestEsports:    "Киберспорт",
	subscriber.InterestMMA:        "Бокс / ММА",
}

var interestEmoji = map[subscriber.Interest]string{
	subscriber.InterestFootball:   "⚽",
	subscriber.InterestHockey:     "🏒",
	subscriber.InterestBasketball: "🏀",
	subscriber.InterestTennis:     "🎾",
	subscriber.InterestEsports:    "🎮",
	subscriber.InterestMMA:        "🥊",
}

var regionLabels = map[subscriber.Region]string{
	subscriber.RegionRussia: "🇷🇺 Только Россия",
	subscriber.RegionAll:    "🌐 Весь мир",
}

var regionStatLabels = map[subscriber.Region]string{
	subscriber.RegionRussia: "🇷🇺 Россия",
	subscriber.RegionAll:    "🌐 Весь мир",
}

func broadcastStartText(total int) string {
	return fmt.Sprintf("📤 Начинаю рассылку для %d подписчиков...", total)
}

func broadcastDoneText(res broadcast.Result) string {
	text := fmt.Sprintf("✅ <b>Рассылка завершена!</b>\n\n📨 Отправлено: %d\n❌ Ошибок: %d", res.Delivered, res.Failed)
	if res.Deactivated > 0 {
		text += fmt.Sprintf("\n🚫 Отключено: %d", res.Deactivated)
	}
	return text
}

// statsText renders the operator report as HTML.
func statsText(r *report.Report) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статистика подписчиков</b>\n\n")
	fmt.Fprintf(&b, "👥 <b>Всего:</b> %d\n", r.Total)
	fmt.Fprintf(&b, "✅ <b>Активных:</b> %d\n", r.Active)
	fmt.Fprintf(&b, "💤 <b>Неактивных:</b> %d\n", r.Inactive)
	fmt.Fprintf(&b, "📝 <b>Прошли опрос:</b> %d\n", r.Complete)

	b.WriteString("\n🌍 <b>По географии:</b>\n")
	for _, reg := range subscriber.AllRegions {
		fmt.Fprintf(&b, "  %s: %d\n", regionStatLabels[reg], r.ByRegion[reg])
	}

	b.WriteString("\n🏆 <b>По видам спорта:</b>\n")
	for _, i := range subscriber.AllInterests {
		fmt.Fprintf(&b, "  %s %s: %d\n", interestEmoji[i], interestLabels[i], r.ByInterest[i])
	}

	if len(r.Daily) > 0 {
		b.WriteString("\n📅 <b>Новые за неделю:</b>\n")
		for _, d := range r.Daily {
			fmt.Fprintf(&b, "  %s: %d\n", d.Day.Format("02.01"), d.Count)
		}
	}

	if len(r.Recent) > 0 {
		b.WriteString("\n🆕 <b>Последние подписчики:</b>\n")
		for _, s := range r.Recent {
			fmt.Fprintf(&b, "  • %s — %s\n", subscriberLabel(s), s.CreatedAt.UTC().Format("02.01.2006 15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func subscriberLabel(s subscriber.Subscriber) string {
	name := format.EscapeHTML(format.Truncate(s.DisplayName, 40))
	switch {
	case name != "" && s.Handle != "":
		return fmt.Sprintf("%s (@%s)", name, format.EscapeHTML(s.Handle))
	case s.Handle != "":
		return "@" + format.EscapeHTML(s.Handle)
	case name != "":
		return name
	default:
		return fmt.Sprintf("id %d", s.PlatformUserID)
	}
}
