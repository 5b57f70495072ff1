package advisor

import (
	"errors"
	"strings"
	"testing"

	"example.com/finance-advisor/backend/internal/models"
)

const validAdviceJSON = `{
  "summary": "You saved 36% of income this month.",
  "savings": {
    "targetRate": 20,
    "monthlyTargetAmount": 600,
    "next7DaysActions": ["Review subscriptions", "Cook at home twice", "Set a grocery limit"],
    "autoTransferSuggestion": "Move 600 to savings on payday."
  },
  "investment": {
    "riskProfiles": [{"level": "balanced", "description": "Mix of bonds and index funds."}],
    "guidance": ["Keep an emergency fund", "Invest monthly"]
  },
  "expenseOptimization": {
    "cutCandidates": [{"category": "Rent", "suggestedCutPercent": 5, "reason": "Largest expense."}],
    "quickWins": ["Switch mobile plan", "Batch errands"]
  },
  "tips": ["Track weekly", "Wait a day before buying"]
}`

// TestParseAdviceValid проверяет разбор корректного ответа.
func TestParseAdviceValid(t *testing.T) {
	advice, err := ParseAdvice(validAdviceJSON)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if advice.Savings.TargetRate != 20 || len(advice.Savings.Next7DaysActions) != 3 || advice.Investment.RiskProfiles[0].Level != models.RiskProfileBalanced {
		t.Fatalf("unexpected advice: %+v", advice)
	}
}

// TestExtractJSONFenced проверяет извлечение из блока кода и из окружающего текста.
func TestExtractJSONFenced(t *testing.T) {
	fenced := "Here you go:\n```json\n" + validAdviceJSON + "\n```\nThanks!"
	if _, err := ParseAdvice(fenced); err != nil {
		t.Fatalf("fenced: expected no error, got %v", err)
	}

	wrapped := "Sure! " + validAdviceJSON + " Let me know."
	if _, err := ParseAdvice(wrapped); err != nil {
		t.Fatalf("wrapped: expected no error, got %v", err)
	}
}

// TestParseAdviceNoJSON проверяет ошибку разбора без JSON.
func TestParseAdviceNoJSON(t *testing.T) {
	_, err := ParseAdvice("I cannot help with that, contact support@example.com")

	var repairErr *RepairError
	if !errors.As(err, &repairErr) || repairErr.Reason != ReasonProviderParseError {
		t.Fatalf("expected parse error, got %v", err)
	}
	if strings.Contains(repairErr.Preview, "support@example.com") {
		t.Fatalf("preview must be redacted: %s", repairErr.Preview)
	}
}

// TestParseAdviceBulletedTips проверяет разбиение строки со списком на элементы.
func TestParseAdviceBulletedTips(t *testing.T) {
	got := stringList([]byte(`"Pause one subscription.\n- Batch groceries."`))
	if len(got) != 2 || got[0] != "Pause one subscription." || got[1] != "Batch groceries." {
		t.Fatalf("unexpected tips: %#v", got)
	}

	text := strings.Replace(validAdviceJSON,
		`"tips": ["Track weekly", "Wait a day before buying"]`,
		`"tips": "1. Track weekly\n2) Wait a day before buying\n\n• Keep receipts"`, 1)
	advice, err := ParseAdvice(text)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(advice.Tips) != 3 || advice.Tips[0] != "Track weekly" || advice.Tips[2] != "Keep receipts" {
		t.Fatalf("unexpected tips: %#v", advice.Tips)
	}
}

// TestParseAdviceCoercesShapes проверяет приведение одиночного объекта, строковых чисел и уровней риска.
func TestParseAdviceCoercesShapes(t *testing.T) {
	text := strings.NewReplacer(
		`"riskProfiles": [{"level": "balanced", "description": "Mix of bonds and index funds."}]`,
		`"riskProfiles": {"level": "Moderate", "description": "Mix of bonds and index funds."}`,
		`"targetRate": 20`, `"targetRate": "20%"`,
		`"monthlyTargetAmount": 600`, `"monthlyTargetAmount": "1,200.50"`,
	).Replace(validAdviceJSON)

	advice, err := ParseAdvice(text)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(advice.Investment.RiskProfiles) != 1 || advice.Investment.RiskProfiles[0].Level != models.RiskProfileBalanced {
		t.Fatalf("unexpected risk profiles: %+v", advice.Investment.RiskProfiles)
	}
	if advice.Savings.TargetRate != 20 || advice.Savings.MonthlyTargetAmount != 1200.5 {
		t.Fatalf("unexpected savings: %+v", advice.Savings)
	}
}

// TestParseAdviceValidationPath проверяет путь первого невалидного поля.
func TestParseAdviceValidationPath(t *testing.T) {
	cases := []struct {
		original    string
		replacement string
		path        string
	}{
		{`"level": "balanced"`, `"level": "yolo"`, "investment.riskProfiles[0].level"},
		{`"targetRate": 20`, `"targetRate": 140`, "savings.targetRate"},
		{`"quickWins": ["Switch mobile plan", "Batch errands"]`, `"quickWins": ["Switch mobile plan"]`, "expenseOptimization.quickWins"},
		{`"suggestedCutPercent": 5`, `"suggestedCutPercent": "a lot"`, "expenseOptimization.cutCandidates[0].suggestedCutPercent"},
	}

	for _, tc := range cases {
		text := strings.Replace(validAdviceJSON, tc.original, tc.replacement, 1)
		_, err := ParseAdvice(text)

		var repairErr *RepairError
		if !errors.As(err, &repairErr) || repairErr.Reason != ReasonProviderValidationError {
			t.Fatalf("%s: expected validation error, got %v", tc.path, err)
		}
		if repairErr.Path != tc.path {
			t.Fatalf("expected path %s, got %s", tc.path, repairErr.Path)
		}
	}
}

// TestLooseToStrictDoesNotMutateInput проверяет, что исходный ответ не изменяется.
func TestLooseToStrictDoesNotMutateInput(t *testing.T) {
	raw := []byte(validAdviceJSON)
	before := string(raw)

	if _, err := looseToStrict(raw); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(raw) != before {
		t.Fatal("input was mutated")
	}
}

// TestStripListMarkerKeepsBold проверяет, что жирный текст не принимается за маркер списка.
func TestStripListMarkerKeepsBold(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{line: "**Cut dining** by 10%", want: "**Cut dining** by 10%"},
		{line: "* **Cut dining** by 10%", want: "**Cut dining** by 10%"},
		{line: "•Keep receipts", want: "Keep receipts"},
		{line: "- Batch groceries", want: "Batch groceries"},
	}

	for _, tc := range cases {
		if got := stripListMarker(tc.line); got != tc.want {
			t.Fatalf("line %q: expected %q, got %q", tc.line, tc.want, got)
		}
	}
}

// TestNumberOfDecimalComma проверяет десятичную запятую и разделители разрядов.
func TestNumberOfDecimalComma(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{raw: `"12,5%"`, want: 12.5},
		{raw: `"12,50 EUR"`, want: 12.5},
		{raw: `"1,200.50"`, want: 1200.5},
		{raw: `"1,200"`, want: 1200},
		{raw: `"20%"`, want: 20},
	}

	for _, tc := range cases {
		got, err := numberOf([]byte(tc.raw), "savings.targetRate")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

// TestExtractJSONAfterNonJSONFence проверяет поиск объекта в тексте, если блок кода без JSON.
func TestExtractJSONAfterNonJSONFence(t *testing.T) {
	raw, err := ExtractJSON("```\nnote\n```\n{\"a\":1}")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(raw) != `{"a":1}` {
		t.Fatalf("unexpected json: %s", raw)
	}
}
