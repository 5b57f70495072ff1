package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt задает роль модели для всех запросов советника.
const SystemPrompt = "You are a careful personal finance advisor. Respond with a single JSON object only, without markdown or extra text."

const adviceExample = `{
  "summary": "string",
  "savings": {
    "targetRate": 15,
    "monthlyTargetAmount": 450.5,
    "next7DaysActions": ["string", "string", "string"],
    "autoTransferSuggestion": "string"
  },
  "investment": {
    "riskProfiles": [
      {"level": "conservative" | "balanced" | "aggressive", "description": "string"}
    ],
    "guidance": ["string", "string"]
  },
  "expenseOptimization": {
    "cutCandidates": [
      {"category": "string", "suggestedCutPercent": 10, "reason": "string"}
    ],
    "quickWins": ["string", "string"]
  },
  "tips": ["string", "string"]
}`

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"es": "Spanish",
}

// NormalizeLanguage приводит код языка к нижнему регистру и по умолчанию возвращает en.
func NormalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return "en"
	}
	return language
}

func languageName(language string) string {
	if name, ok := languageNames[language]; ok {
		return name
	}
	return language
}

// NewPromptPayload собирает данные для провайдера из снимка и предпочтений.
func NewPromptPayload(snapshot Snapshot, prefs Preferences) PromptPayload {
	return PromptPayload{
		Month:             snapshot.Month,
		Currency:          snapshot.Currency,
		Last30Days:        snapshot.Last30Days,
		CurrentMonth:      snapshot.CurrentMonth,
		SavingsRate:       snapshot.SavingsRate,
		CategoryBreakdown: snapshot.CategoryBreakdown,
		CashflowTrend:     snapshot.CashflowTrend,
		BudgetAdherence:   snapshot.BudgetAdherence,
		Recurring:         snapshot.Recurring,
		Flags:             snapshot.Flags,
		Preferences:       prefs,
	}
}

// RenderPrompt формирует пользовательский промпт; для одинаковых входных данных результат идентичен.
func RenderPrompt(language string, snapshot Snapshot, prefs Preferences) (string, error) {
	payload, err := json.MarshalIndent(NewPromptPayload(snapshot, prefs), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt payload: %w", err)
	}

	prompt := fmt.Sprintf(`Review the monthly financial snapshot below and return personal finance advice as JSON.

Requirements:
- Write every string value in %s.
- Output one JSON object only. Do not wrap it in markdown code fences and do not add any text around it.
- Never mention names, e-mail addresses, account numbers or other personal data, even if they seem to be present.
- Base every number on the snapshot. Amounts are in the snapshot currency.
- Schema example:
%s
- "summary": one or two sentences, at most 600 characters.
- "savings.targetRate": percent between 0 and 100. "savings.monthlyTargetAmount": non-negative number.
- "savings.next7DaysActions": 3-5 short concrete actions.
- "investment.riskProfiles": 1-3 entries; "level" must be one of conservative, balanced, aggressive.
- "investment.guidance": 2-5 short items.
- "expenseOptimization.cutCandidates": 1-3 entries taken from the category breakdown; "suggestedCutPercent" between 0 and 100.
- "expenseOptimization.quickWins": 2-5 short items.
- "tips": 2-6 short items.
- Keep every list item under 240 characters.

Snapshot:
%s`, languageName(NormalizeLanguage(language)), adviceExample, string(payload))

	return prompt, nil
}
