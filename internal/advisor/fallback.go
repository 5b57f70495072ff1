package advisor

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"example.com/finance-advisor/backend/internal/models"
)

const (
	defaultCutPercent     = 10
	overspentCutPercent   = 20
	maxFallbackCandidates = 3
)

// FallbackInput часть снимка, из которой строится локальный совет.
type FallbackInput struct {
	CurrentMonth      Totals
	SavingsRate       float64
	CategoryBreakdown []CategoryShare
	Flags             BehaviorFlags
}

// FallbackInputFromSnapshot выделяет из снимка данные для локального совета.
func FallbackInputFromSnapshot(snapshot Snapshot) FallbackInput {
	return FallbackInput{
		CurrentMonth:      snapshot.CurrentMonth,
		SavingsRate:       snapshot.SavingsRate,
		CategoryBreakdown: snapshot.CategoryBreakdown,
		Flags:             snapshot.Flags,
	}
}

type copyBundle struct {
	summary          string
	negativeCashflow string
	lowSavings       string
	irregularIncome  string
	actions          []string
	autoTransfer     string
	autoTransferZero string
	riskProfiles     map[models.RiskProfile]string
	guidance         []string
	cutReason        string
	overspentReason  string
	placeholders     []CutCandidate
	quickWins        []string
	tips             []string
	irregularTip     string
}

var bundles = map[string]copyBundle{
	"en": {
		summary:          "This month you are saving %.1f%% of your income against a target of %.0f%%.",
		negativeCashflow: " Spending is above income, so the first priority is to close the gap.",
		lowSavings:       " Your savings rate is low; small automatic transfers will help build the habit.",
		irregularIncome:  " Your income varies from month to month, so keep a larger cash buffer.",
		actions: []string{
			"Review every expense from the last 7 days and mark the ones you could skip.",
			"Set a weekly spending limit for your largest optional category.",
			"Cancel or pause one subscription you have not used this month.",
			"Move any money left at the end of the week into savings.",
		},
		autoTransfer:     "Schedule an automatic transfer of %.2f to savings right after each payday.",
		autoTransferZero: "Once income arrives, schedule an automatic transfer to savings on the same day.",
		riskProfiles: map[models.RiskProfile]string{
			models.RiskProfileConservative: "Keep most money in deposits and short-term bonds; focus on protecting capital.",
			models.RiskProfileBalanced:     "Split savings between bonds and broad index funds to balance growth and stability.",
			models.RiskProfileAggressive:   "Favour diversified equity index funds for long-term growth and accept larger swings.",
		},
		guidance: []string{
			"Build an emergency fund of three to six months of expenses before investing.",
			"Invest regularly in small amounts instead of trying to time the market.",
			"Prefer low-cost diversified funds over individual stocks.",
		},
		cutReason:       "It takes %.1f%% of this month's spending.",
		overspentReason: "It is already over budget this month.",
		placeholders: []CutCandidate{
			{Category: "Dining out", SuggestedCutPercent: defaultCutPercent, Reason: "Cooking at home more often is an easy saving."},
			{Category: "Subscriptions", SuggestedCutPercent: defaultCutPercent, Reason: "Unused services add up over the year."},
		},
		quickWins: []string{
			"Plan meals for the week before grocery shopping.",
			"Turn off one-click payments in shopping apps.",
			"Compare your mobile and internet plans with current offers.",
		},
		tips: []string{
			"Track expenses weekly rather than at the end of the month.",
			"Wait 24 hours before any unplanned purchase.",
			"Review budgets at the start of each month.",
		},
		irregularTip: "Base your budget on your lowest recent monthly income.",
	},
	"ru": {
		summary:          "В этом месяце вы откладываете %.1f%% дохода при цели %.0f%%.",
		negativeCashflow: " Расходы превышают доходы, поэтому в первую очередь стоит закрыть разрыв.",
		lowSavings:       " Норма сбережений низкая; небольшие автоматические переводы помогут выработать привычку.",
		irregularIncome:  " Доход меняется от месяца к месяцу, поэтому держите больший денежный резерв.",
		actions: []string{
			"Просмотрите все траты за последние 7 дней и отметьте те, без которых можно обойтись.",
			"Установите недельный лимит для самой крупной необязательной категории.",
			"Отмените или приостановите одну подписку, которой не пользовались в этом месяце.",
			"Переводите остаток денег в конце недели на накопительный счет.",
		},
		autoTransfer:     "Настройте автоматический перевод %.2f на сбережения сразу после каждой зарплаты.",
		autoTransferZero: "Когда поступит доход, настройте автоматический перевод на сбережения в тот же день.",
		riskProfiles: map[models.RiskProfile]string{
			models.RiskProfileConservative: "Держите большую часть средств во вкладах и краткосрочных облигациях, главное сохранить капитал.",
			models.RiskProfileBalanced:     "Распределите сбережения между облигациями и широкими индексными фондами.",
			models.RiskProfileAggressive:   "Делайте ставку на диверсифицированные фонды акций для долгосрочного роста и будьте готовы к колебаниям.",
		},
		guidance: []string{
			"Сформируйте резервный фонд на три-шесть месяцев расходов до начала инвестиций.",
			"Инвестируйте регулярно небольшими суммами, не пытаясь угадать момент.",
			"Выбирайте недорогие диверсифицированные фонды вместо отдельных акций.",
		},
		cutReason:       "На нее приходится %.1f%% расходов этого месяца.",
		overspentReason: "Бюджет по ней в этом месяце уже превышен.",
		placeholders: []CutCandidate{
			{Category: "Кафе и рестораны", SuggestedCutPercent: defaultCutPercent, Reason: "Готовить дома чаще простой способ сэкономить."},
			{Category: "Подписки", SuggestedCutPercent: defaultCutPercent, Reason: "Неиспользуемые сервисы заметно складываются за год."},
		},
		quickWins: []string{
			"Планируйте меню на неделю перед походом в магазин.",
			"Отключите оплату в один клик в приложениях магазинов.",
			"Сравните свой тариф связи и интернета с текущими предложениями.",
		},
		tips: []string{
			"Отслеживайте расходы каждую неделю, а не в конце месяца.",
			"Подождите 24 часа перед любой незапланированной покупкой.",
			"Пересматривайте бюджеты в начале каждого месяца.",
		},
		irregularTip: "Стройте бюджет от самого низкого месячного дохода за последнее время.",
	},
	"es": {
		summary:          "Este mes ahorras el %.1f%% de tus ingresos frente a un objetivo del %.0f%%.",
		negativeCashflow: " Los gastos superan a los ingresos, así que lo primero es cerrar esa brecha.",
		lowSavings:       " Tu tasa de ahorro es baja; pequeñas transferencias automáticas ayudarán a crear el hábito.",
		irregularIncome:  " Tus ingresos varían de un mes a otro, así que mantén un colchón de efectivo mayor.",
		actions: []string{
			"Revisa todos los gastos de los últimos 7 días y marca los que podrías evitar.",
			"Fija un límite semanal para tu mayor categoría de gasto opcional.",
			"Cancela o pausa una suscripción que no hayas usado este mes.",
			"Pasa a ahorro el dinero que te sobre al final de la semana.",
		},
		autoTransfer:     "Programa una transferencia automática de %.2f al ahorro justo después de cada cobro.",
		autoTransferZero: "Cuando lleguen los ingresos, programa una transferencia automática al ahorro ese mismo día.",
		riskProfiles: map[models.RiskProfile]string{
			models.RiskProfileConservative: "Mantén la mayor parte en depósitos y bonos a corto plazo; prioriza proteger el capital.",
			models.RiskProfileBalanced:     "Reparte el ahorro entre bonos y fondos indexados amplios para equilibrar crecimiento y estabilidad.",
			models.RiskProfileAggressive:   "Prioriza fondos indexados de acciones diversificados para crecer a largo plazo y acepta más volatilidad.",
		},
		guidance: []string{
			"Crea un fondo de emergencia de tres a seis meses de gastos antes de invertir.",
			"Invierte de forma periódica en pequeñas cantidades en lugar de adivinar el momento.",
			"Prefiere fondos diversificados de bajo coste frente a acciones individuales.",
		},
		cutReason:       "Representa el %.1f%% del gasto de este mes.",
		overspentReason: "Ya ha superado su presupuesto este mes.",
		placeholders: []CutCandidate{
			{Category: "Restaurantes", SuggestedCutPercent: defaultCutPercent, Reason: "Cocinar en casa más a menudo es un ahorro sencillo."},
			{Category: "Suscripciones", SuggestedCutPercent: defaultCutPercent, Reason: "Los servicios sin uso suman mucho a lo largo del año."},
		},
		quickWins: []string{
			"Planifica las comidas de la semana antes de ir al supermercado.",
			"Desactiva los pagos con un clic en las apps de compras.",
			"Compara tu tarifa de móvil e internet con las ofertas actuales.",
		},
		tips: []string{
			"Revisa tus gastos cada semana en lugar de a final de mes.",
			"Espera 24 horas antes de cualquier compra no planificada.",
			"Revisa los presupuestos al comienzo de cada mes.",
		},
		irregularTip: "Basa tu presupuesto en tu ingreso mensual más bajo reciente.",
	},
}

var riskOrder = []models.RiskProfile{
	models.RiskProfileConservative,
	models.RiskProfileBalanced,
	models.RiskProfileAggressive,
}

func bundleFor(language string) copyBundle {
	if bundle, ok := bundles[NormalizeLanguage(language)]; ok {
		return bundle
	}
	return bundles["en"]
}

// Synthesize строит детерминированный локализованный совет без обращения к провайдеру.
func Synthesize(language string, input FallbackInput, prefs Preferences) AdviceOutput {
	bundle := bundleFor(language)
	targetRate := math.Min(math.Max(prefs.TargetSavingsRate, 0), 100)

	income := decimal.NewFromFloat(math.Max(input.CurrentMonth.Income, 0))
	monthlyTarget := round2(income.Mul(decimal.NewFromFloat(targetRate)).Div(hundred))

	summary := fmt.Sprintf(bundle.summary, input.SavingsRate, targetRate)
	switch {
	case input.Flags.NegativeCashflow:
		summary += bundle.negativeCashflow
	case input.Flags.LowSavingsRate:
		summary += bundle.lowSavings
	case input.Flags.IrregularIncome:
		summary += bundle.irregularIncome
	}

	autoTransfer := bundle.autoTransferZero
	if monthlyTarget > 0 {
		autoTransfer = fmt.Sprintf(bundle.autoTransfer, monthlyTarget)
	}

	tips := append([]string{}, bundle.tips...)
	if input.Flags.IrregularIncome {
		tips = append(tips, bundle.irregularTip)
	}

	return AdviceOutput{
		Summary: summary,
		Savings: SavingsAdvice{
			TargetRate:             targetRate,
			MonthlyTargetAmount:    monthlyTarget,
			Next7DaysActions:       append([]string{}, bundle.actions...),
			AutoTransferSuggestion: autoTransfer,
		},
		Investment: InvestmentAdvice{
			RiskProfiles: orderedRiskProfiles(bundle, prefs.RiskProfile),
			Guidance:     append([]string{}, bundle.guidance...),
		},
		ExpenseOptimization: ExpenseAdvice{
			CutCandidates: cutCandidates(bundle, input),
			QuickWins:     append([]string{}, bundle.quickWins...),
		},
		Tips: tips,
	}
}

func orderedRiskProfiles(bundle copyBundle, preferred models.RiskProfile) []RiskProfileAdvice {
	profiles := make([]RiskProfileAdvice, 0, len(riskOrder))
	if _, ok := bundle.riskProfiles[preferred]; ok {
		profiles = append(profiles, RiskProfileAdvice{Level: preferred, Description: bundle.riskProfiles[preferred]})
	}
	for _, level := range riskOrder {
		if level == preferred {
			continue
		}
		profiles = append(profiles, RiskProfileAdvice{Level: level, Description: bundle.riskProfiles[level]})
	}
	return profiles
}

func cutCandidates(bundle copyBundle, input FallbackInput) []CutCandidate {
	overspent := make(map[string]bool, len(input.Flags.OverspendingCategories))
	for _, name := range input.Flags.OverspendingCategories {
		overspent[name] = true
	}

	candidates := make([]CutCandidate, 0, maxFallbackCandidates)
	for _, share := range input.CategoryBreakdown {
		if len(candidates) == maxFallbackCandidates {
			break
		}
		if share.Name == "" {
			continue
		}
		candidate := CutCandidate{
			Category:            share.Name,
			SuggestedCutPercent: defaultCutPercent,
			Reason:              fmt.Sprintf(bundle.cutReason, share.SharePercent),
		}
		if overspent[share.Name] {
			candidate.SuggestedCutPercent = overspentCutPercent
			candidate.Reason = bundle.overspentReason
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return append(candidates, bundle.placeholders...)
	}
	return candidates
}
