package advisor

import (
	"slices"
	"time"

	"example.com/finance-advisor/backend/internal/models"
)

type Mode string

type Reason string

type BudgetStatus string

const (
	ModeAI       Mode = "ai"
	ModeFallback Mode = "fallback"

	ReasonMissingAPIKey           Reason = "missing_api_key"
	ReasonProviderTimeout         Reason = "provider_timeout"
	ReasonProviderHTTPError       Reason = "provider_http_error"
	ReasonProviderParseError      Reason = "provider_parse_error"
	ReasonProviderValidationError Reason = "provider_validation_error"
	ReasonProviderUnknownError    Reason = "provider_unknown_error"

	BudgetOnTrack   BudgetStatus = "on_track"
	BudgetNearLimit BudgetStatus = "near_limit"
	BudgetOverLimit BudgetStatus = "over_limit"
)

type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

type CategoryShare struct {
	Name         string  `json:"name"`
	Total        float64 `json:"total"`
	SharePercent float64 `json:"sharePercent"`
}

type TrendPoint struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

type BudgetItem struct {
	Category        string       `json:"category"`
	LimitAmount     float64      `json:"limitAmount"`
	SpentAmount     float64      `json:"spentAmount"`
	RemainingAmount float64      `json:"remainingAmount"`
	PercentUsed     float64      `json:"percentUsed"`
	Status          BudgetStatus `json:"status"`
}

type BudgetAdherence struct {
	OnTrack   int          `json:"onTrack"`
	NearLimit int          `json:"nearLimit"`
	OverLimit int          `json:"overLimit"`
	Items     []BudgetItem `json:"items"`
}

type RecurringRuleRow struct {
	Kind      string  `json:"kind"`
	Cadence   string  `json:"cadence"`
	Amount    float64 `json:"amount"`
	NextRunAt string  `json:"nextRunAt"`
	Label     string  `json:"label"`
}

type MerchantCluster struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

type RecurringSummary struct {
	MonthlyTotal     float64            `json:"monthlyTotal"`
	Rules            []RecurringRuleRow `json:"rules"`
	MerchantClusters []MerchantCluster  `json:"merchantClusters"`
}

type BehaviorFlags struct {
	NegativeCashflow       bool     `json:"negativeCashflow"`
	LowSavingsRate         bool     `json:"lowSavingsRate"`
	IrregularIncome        bool     `json:"irregularIncome"`
	OverspendingCategories []string `json:"overspendingCategories"`
}

type AccountSummary struct {
	Count        int     `json:"count"`
	TotalBalance float64 `json:"totalBalance"`
}

// Snapshot содержит агрегированные числовые показатели пользователя за месяц.
type Snapshot struct {
	Month             string           `json:"month"`
	Currency          *string          `json:"currency"`
	Last30Days        Totals           `json:"last30Days"`
	CurrentMonth      Totals           `json:"currentMonth"`
	SavingsRate       float64          `json:"savingsRate"`
	CategoryBreakdown []CategoryShare  `json:"categoryBreakdown"`
	CashflowTrend     []TrendPoint     `json:"cashflowTrend"`
	BudgetAdherence   BudgetAdherence  `json:"budgetAdherence"`
	Recurring         RecurringSummary `json:"recurring"`
	Flags             BehaviorFlags    `json:"flags"`
	Accounts          AccountSummary   `json:"accounts"`
}

type Preferences struct {
	TargetSavingsRate float64            `json:"targetSavingsRate"`
	RiskProfile       models.RiskProfile `json:"riskProfile"`
}

// PromptPayload единственные данные, которые уходят провайдеру.
type PromptPayload struct {
	Month             string           `json:"month"`
	Currency          *string          `json:"currency"`
	Last30Days        Totals           `json:"last30Days"`
	CurrentMonth      Totals           `json:"currentMonth"`
	SavingsRate       float64          `json:"savingsRate"`
	CategoryBreakdown []CategoryShare  `json:"categoryBreakdown"`
	CashflowTrend     []TrendPoint     `json:"cashflowTrend"`
	BudgetAdherence   BudgetAdherence  `json:"budgetAdherence"`
	Recurring         RecurringSummary `json:"recurring"`
	Flags             BehaviorFlags    `json:"flags"`
	Preferences       Preferences      `json:"preferences"`
}

type AdviceOutput struct {
	Summary             string           `json:"summary" validate:"required,max=600"`
	Savings             SavingsAdvice    `json:"savings"`
	Investment          InvestmentAdvice `json:"investment"`
	ExpenseOptimization ExpenseAdvice    `json:"expenseOptimization"`
	Tips                []string         `json:"tips" validate:"min=2,max=6,dive,required,max=240"`
}

type SavingsAdvice struct {
	TargetRate             float64  `json:"targetRate" validate:"gte=0,lte=100"`
	MonthlyTargetAmount    float64  `json:"monthlyTargetAmount" validate:"gte=0"`
	Next7DaysActions       []string `json:"next7DaysActions" validate:"min=3,max=5,dive,required,max=240"`
	AutoTransferSuggestion string   `json:"autoTransferSuggestion" validate:"required,max=300"`
}

type InvestmentAdvice struct {
	RiskProfiles []RiskProfileAdvice `json:"riskProfiles" validate:"min=1,max=3,dive"`
	Guidance     []string            `json:"guidance" validate:"min=2,max=5,dive,required,max=240"`
}

type RiskProfileAdvice struct {
	Level       models.RiskProfile `json:"level" validate:"oneof=conservative balanced aggressive"`
	Description string             `json:"description" validate:"required,max=300"`
}

type ExpenseAdvice struct {
	CutCandidates []CutCandidate `json:"cutCandidates" validate:"min=1,max=3,dive"`
	QuickWins     []string       `json:"quickWins" validate:"min=2,max=5,dive,required,max=240"`
}

type CutCandidate struct {
	Category            string  `json:"category" validate:"required,max=80"`
	SuggestedCutPercent float64 `json:"suggestedCutPercent" validate:"gte=0,lte=100"`
	Reason              string  `json:"reason" validate:"required,max=240"`
}

// Insight полный ответ движка, кешируется и возвращается как есть.
type Insight struct {
	Snapshot       Snapshot     `json:"snapshot"`
	Advice         AdviceOutput `json:"advice"`
	Mode           Mode         `json:"mode"`
	ModeReason     *Reason      `json:"modeReason"`
	Provider       *string      `json:"provider"`
	ProviderStatus *int         `json:"providerStatus"`
	GeneratedAt    time.Time    `json:"generatedAt"`
}

// Clone возвращает глубокую копию, не разделяющую срезы и указатели с исходным значением.
func (i Insight) Clone() Insight {
	out := i
	out.Snapshot.Currency = clonePtr(i.Snapshot.Currency)
	out.Snapshot.CategoryBreakdown = slices.Clone(i.Snapshot.CategoryBreakdown)
	out.Snapshot.CashflowTrend = slices.Clone(i.Snapshot.CashflowTrend)
	out.Snapshot.BudgetAdherence.Items = slices.Clone(i.Snapshot.BudgetAdherence.Items)
	out.Snapshot.Recurring.Rules = slices.Clone(i.Snapshot.Recurring.Rules)
	out.Snapshot.Recurring.MerchantClusters = slices.Clone(i.Snapshot.Recurring.MerchantClusters)
	out.Snapshot.Flags.OverspendingCategories = slices.Clone(i.Snapshot.Flags.OverspendingCategories)

	out.Advice.Tips = slices.Clone(i.Advice.Tips)
	out.Advice.Savings.Next7DaysActions = slices.Clone(i.Advice.Savings.Next7DaysActions)
	out.Advice.Investment.RiskProfiles = slices.Clone(i.Advice.Investment.RiskProfiles)
	out.Advice.Investment.Guidance = slices.Clone(i.Advice.Investment.Guidance)
	out.Advice.ExpenseOptimization.CutCandidates = slices.Clone(i.Advice.ExpenseOptimization.CutCandidates)
	out.Advice.ExpenseOptimization.QuickWins = slices.Clone(i.Advice.ExpenseOptimization.QuickWins)

	out.ModeReason = clonePtr(i.ModeReason)
	out.Provider = clonePtr(i.Provider)
	out.ProviderStatus = clonePtr(i.ProviderStatus)
	return out
}

func clonePtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
