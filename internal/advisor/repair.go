package advisor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"example.com/finance-advisor/backend/internal/models"
)

var (
	fencePattern      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	listMarkerPattern = regexp.MustCompile(`^(?:\*+\s+|[•·]+\s*|[-–]+\s+|(?:\d{1,2}[.)]|\(\d{1,2}\))\s+)`)
	numberPattern     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	errNoJSON = errors.New("response does not contain a json object")
)

// RepairError описывает ответ провайдера, который не удалось разобрать или проверить.
type RepairError struct {
	Reason  Reason
	Path    string
	Preview string
	Err     error
}

func (e *RepairError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RepairError) Unwrap() error {
	return e.Err
}

// ExtractJSON достает JSON-объект из текста: из блока ``` или по первой { и последней }.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)

	candidates := make([]string, 0, 2)
	if match := fencePattern.FindStringSubmatch(trimmed); match != nil {
		candidates = append(candidates, strings.TrimSpace(match[1]))
	}
	candidates = append(candidates, trimmed)

	for _, candidate := range candidates {
		if raw, ok := objectIn(candidate); ok {
			return raw, nil
		}
	}
	return nil, errNoJSON
}

func objectIn(candidate string) (json.RawMessage, bool) {
	if isJSONObject(candidate) {
		return json.RawMessage(candidate), true
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	span := candidate[start : end+1]
	if !isJSONObject(span) {
		return nil, false
	}
	return json.RawMessage(span), true
}

func isJSONObject(value string) bool {
	return strings.HasPrefix(value, "{") && json.Valid([]byte(value))
}

// ParseAdvice извлекает, приводит к строгой форме и проверяет ответ провайдера.
func ParseAdvice(text string) (AdviceOutput, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return AdviceOutput{}, &RepairError{Reason: ReasonProviderParseError, Preview: RedactPreview(text), Err: err}
	}

	advice, err := looseToStrict(raw)
	if err != nil {
		var coerceErr *coerceError
		if errors.As(err, &coerceErr) {
			return AdviceOutput{}, &RepairError{
				Reason:  ReasonProviderValidationError,
				Path:    coerceErr.path,
				Preview: RedactPreview(text),
				Err:     err,
			}
		}
		return AdviceOutput{}, &RepairError{Reason: ReasonProviderParseError, Preview: RedactPreview(text), Err: err}
	}

	if path, err := ValidateAdvice(advice); err != nil {
		return AdviceOutput{}, &RepairError{
			Reason:  ReasonProviderValidationError,
			Path:    path,
			Preview: RedactPreview(text),
			Err:     err,
		}
	}

	return advice, nil
}

type coerceError struct {
	path string
	msg  string
}

func (e *coerceError) Error() string {
	return e.path + ": " + e.msg
}

type rawObject map[string]json.RawMessage

func objectOf(raw json.RawMessage) rawObject {
	var object rawObject
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil
	}
	return object
}

func kindOf(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// looseToStrict строит AdviceOutput из свободной формы ответа, не изменяя исходные данные.
func looseToStrict(raw json.RawMessage) (AdviceOutput, error) {
	root := objectOf(raw)
	if root == nil {
		return AdviceOutput{}, errNoJSON
	}

	var advice AdviceOutput
	advice.Summary = stringOf(root["summary"])
	advice.Tips = stringList(root["tips"])

	savings := objectOf(root["savings"])
	targetRate, err := numberOf(savings["targetRate"], "savings.targetRate")
	if err != nil {
		return AdviceOutput{}, err
	}
	monthlyTarget, err := numberOf(savings["monthlyTargetAmount"], "savings.monthlyTargetAmount")
	if err != nil {
		return AdviceOutput{}, err
	}
	advice.Savings = SavingsAdvice{
		TargetRate:             targetRate,
		MonthlyTargetAmount:    monthlyTarget,
		Next7DaysActions:       stringList(savings["next7DaysActions"]),
		AutoTransferSuggestion: stringOf(savings["autoTransferSuggestion"]),
	}

	investment := objectOf(root["investment"])
	advice.Investment.Guidance = stringList(investment["guidance"])
	for _, profile := range objectList(investment["riskProfiles"]) {
		advice.Investment.RiskProfiles = append(advice.Investment.RiskProfiles, RiskProfileAdvice{
			Level:       normalizeRiskLevel(stringOf(profile["level"])),
			Description: stringOf(profile["description"]),
		})
	}

	expense := objectOf(root["expenseOptimization"])
	advice.ExpenseOptimization.QuickWins = stringList(expense["quickWins"])
	for i, candidate := range objectList(expense["cutCandidates"]) {
		path := fmt.Sprintf("expenseOptimization.cutCandidates[%d].suggestedCutPercent", i)
		percent, err := numberOf(candidate["suggestedCutPercent"], path)
		if err != nil {
			return AdviceOutput{}, err
		}
		advice.ExpenseOptimization.CutCandidates = append(advice.ExpenseOptimization.CutCandidates, CutCandidate{
			Category:            stringOf(candidate["category"]),
			SuggestedCutPercent: percent,
			Reason:              stringOf(candidate["reason"]),
		})
	}

	return advice, nil
}

func stringOf(raw json.RawMessage) string {
	switch kindOf(raw) {
	case '"':
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return ""
		}
		return strings.TrimSpace(value)
	case 0, 'n', '{', '[':
		return ""
	default:
		return strings.TrimSpace(string(raw))
	}
}

// stringList принимает массив строк или одну строку со списком через переводы строк.
func stringList(raw json.RawMessage) []string {
	switch kindOf(raw) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			if value := stripListMarker(stringOf(item)); value != "" {
				list = append(list, value)
			}
		}
		return list
	case '"':
		return splitLines(stringOf(raw))
	default:
		return nil
	}
}

func splitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	list := make([]string, 0, len(lines))
	for _, line := range lines {
		if value := stripListMarker(line); value != "" {
			list = append(list, value)
		}
	}
	return list
}

func stripListMarker(line string) string {
	line = strings.TrimSpace(line)
	return strings.TrimSpace(listMarkerPattern.ReplaceAllString(line, ""))
}

func objectList(raw json.RawMessage) []rawObject {
	switch kindOf(raw) {
	case '{':
		if object := objectOf(raw); object != nil {
			return []rawObject{object}
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		list := make([]rawObject, 0, len(items))
		for _, item := range items {
			if object := objectOf(item); object != nil {
				list = append(list, object)
			}
		}
		return list
	}
	return nil
}

// numberOf принимает число или строку вида "20%", "1,200.50" или "12,5%".
func numberOf(raw json.RawMessage, path string) (float64, error) {
	switch kindOf(raw) {
	case 0, 'n':
		return 0, &coerceError{path: path, msg: "required"}
	case '"':
		text := normalizeNumberText(stringOf(raw))
		match := numberPattern.FindString(text)
		if match == "" {
			return 0, &coerceError{path: path, msg: "not a number"}
		}
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, &coerceError{path: path, msg: "not a number"}
		}
		return value, nil
	default:
		var value float64
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, &coerceError{path: path, msg: "not a number"}
		}
		return value, nil
	}
}

// normalizeNumberText считает единственную запятую с 1-2 цифрами после нее десятичной, остальные запятые разделителями разрядов.
func normalizeNumberText(text string) string {
	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		idx := strings.Index(text, ",")
		digits := 0
		for _, r := range text[idx+1:] {
			if r < '0' || r > '9' {
				break
			}
			digits++
		}
		if idx > 0 && text[idx-1] >= '0' && text[idx-1] <= '9' && digits >= 1 && digits <= 2 {
			return text[:idx] + "." + text[idx+1:]
		}
	}
	return strings.ReplaceAll(text, ",", "")
}

func normalizeRiskLevel(value string) models.RiskProfile {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "conservative", "low", "safe", "cautious":
		return models.RiskProfileConservative
	case "balanced", "moderate", "medium":
		return models.RiskProfileBalanced
	case "aggressive", "high", "growth":
		return models.RiskProfileAggressive
	default:
		return models.RiskProfile(strings.ToLower(strings.TrimSpace(value)))
	}
}
