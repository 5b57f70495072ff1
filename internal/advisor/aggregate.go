package advisor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"example.com/finance-advisor/backend/internal/models"
)

const (
	monthLayout = "2006-01"

	maxCategoryShares   = 5
	maxBudgetItems      = 8
	maxRecurringRules   = 5
	maxMerchantClusters = 5
	minClusterCount     = 2

	nearLimitPercent = 80
	overLimitPercent = 100
	lowSavingsRate   = 10
	irregularRatio   = 1.5

	uncategorizedLabel = "uncategorized"
)

var hundred = decimal.NewFromInt(100)

// Store описывает чтение финансовых данных пользователя, нужных для снимка.
type Store interface {
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error)
	ListBudgets(ctx context.Context, userID uuid.UUID, month time.Time) ([]models.Budget, error)
	ListRecurringRules(ctx context.Context, userID uuid.UUID) ([]models.RecurringRule, error)
	CategoryNames(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator создает агрегатор снимков поверх хранилища.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// ParseMonth разбирает месяц в формате YYYY-MM и возвращает его первый день в UTC.
func ParseMonth(value string) (time.Time, error) {
	month, err := time.Parse(monthLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, value)
	}
	return month.UTC(), nil
}

type window struct {
	monthStart    time.Time
	monthEnd      time.Time
	trendStart    time.Time
	trailingStart time.Time
	trailingEnd   time.Time
}

// newWindow строит окна периода; 30 дней отсчитываются от сегодня или от конца прошедшего месяца.
func newWindow(monthStart, now time.Time) window {
	monthEnd := monthStart.AddDate(0, 1, 0)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	anchor := today
	if !monthEnd.After(today) {
		anchor = monthEnd.AddDate(0, 0, -1)
	}
	trailingEnd := anchor.AddDate(0, 0, 1)

	return window{
		monthStart:    monthStart,
		monthEnd:      monthEnd,
		trendStart:    monthStart.AddDate(0, -2, 0),
		trailingStart: trailingEnd.AddDate(0, 0, -30),
		trailingEnd:   trailingEnd,
	}
}

func (w window) queryRange() (time.Time, time.Time) {
	from := w.trendStart
	if w.trailingStart.Before(from) {
		from = w.trailingStart
	}
	to := w.monthEnd
	if w.trailingEnd.After(to) {
		to = w.trailingEnd
	}
	return from, to
}

func (w window) trendIndex(at time.Time) int {
	if at.Before(w.trendStart) || !at.Before(w.monthEnd) {
		return -1
	}
	return (at.Year()-w.trendStart.Year())*12 + int(at.Month()) - int(w.trendStart.Month())
}

type sums struct {
	income  decimal.Decimal
	expense decimal.Decimal
}

func (s *sums) add(tx models.Transaction) {
	switch tx.Type {
	case models.TransactionTypeIncome:
		s.income = s.income.Add(tx.Amount)
	case models.TransactionTypeExpense:
		s.expense = s.expense.Add(tx.Amount)
	}
}

func (s sums) totals() Totals {
	return Totals{
		Income:  round2(s.income),
		Expense: round2(s.expense),
		Net:     round2(s.income.Sub(s.expense)),
	}
}

type cluster struct {
	label string
	count int
	total decimal.Decimal
}

type dataset struct {
	accounts     []models.Account
	transactions []models.Transaction
	budgets      []models.Budget
	rules        []models.RecurringRule
	names        map[uuid.UUID]string
}

// Aggregate собирает снимок финансов пользователя за месяц.
func (a *Aggregator) Aggregate(ctx context.Context, userID uuid.UUID, month string) (Snapshot, error) {
	monthStart, err := ParseMonth(month)
	if err != nil {
		return Snapshot{}, err
	}

	w := newWindow(monthStart, a.now().UTC())
	data, err := a.load(ctx, userID, w)
	if err != nil {
		return Snapshot{}, err
	}

	return buildSnapshot(month, w, data), nil
}

func (a *Aggregator) load(ctx context.Context, userID uuid.UUID, w window) (dataset, error) {
	var data dataset
	from, to := w.queryRange()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := a.store.ListAccounts(gctx, userID)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		data.accounts = accounts
		return nil
	})
	g.Go(func() error {
		transactions, err := a.store.ListTransactions(gctx, userID, from, to)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		data.transactions = transactions
		return nil
	})
	g.Go(func() error {
		budgets, err := a.store.ListBudgets(gctx, userID, w.monthStart)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		data.budgets = budgets
		return nil
	})
	g.Go(func() error {
		rules, err := a.store.ListRecurringRules(gctx, userID)
		if err != nil {
			return fmt.Errorf("list recurring rules: %w", err)
		}
		data.rules = rules
		return nil
	})
	if err := g.Wait(); err != nil {
		return dataset{}, err
	}

	ids := categoryIDs(data)
	data.names = map[uuid.UUID]string{}
	if len(ids) > 0 {
		names, err := a.store.CategoryNames(ctx, userID, ids)
		if err != nil {
			return dataset{}, fmt.Errorf("category names: %w", err)
		}
		data.names = names
	}

	return data, nil
}

func categoryIDs(data dataset) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0)
	add := func(id *uuid.UUID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}

	for i := range data.transactions {
		add(data.transactions[i].CategoryID)
	}
	for i := range data.budgets {
		add(&data.budgets[i].CategoryID)
	}
	for i := range data.rules {
		add(data.rules[i].CategoryID)
	}
	return ids
}

func buildSnapshot(month string, w window, data dataset) Snapshot {
	var (
		trailing sums
		trend    [3]sums
	)
	byCategory := map[uuid.UUID]decimal.Decimal{}
	uncategorized := decimal.Zero
	merchants := map[string]*cluster{}

	for _, tx := range data.transactions {
		at := tx.OccurredAt.UTC()

		if !at.Before(w.trailingStart) && at.Before(w.trailingEnd) {
			trailing.add(tx)
		}

		idx := w.trendIndex(at)
		if idx < 0 {
			continue
		}
		trend[idx].add(tx)

		if tx.Type != models.TransactionTypeExpense {
			continue
		}
		if tx.Description != nil {
			if label := normalizeMerchant(*tx.Description); label != "" {
				c, ok := merchants[label]
				if !ok {
					c = &cluster{label: label}
					merchants[label] = c
				}
				c.count++
				c.total = c.total.Add(tx.Amount)
			}
		}
		if idx != 2 {
			continue
		}
		if tx.CategoryID == nil {
			uncategorized = uncategorized.Add(tx.Amount)
			continue
		}
		byCategory[*tx.CategoryID] = byCategory[*tx.CategoryID].Add(tx.Amount)
	}
	current := trend[2]

	snapshot := Snapshot{
		Month:        month,
		Currency:     snapshotCurrency(data),
		Last30Days:   trailing.totals(),
		CurrentMonth: current.totals(),
		SavingsRate:  percentOf(current.income.Sub(current.expense), current.income),
	}

	snapshot.CategoryBreakdown = categoryBreakdown(byCategory, uncategorized, current.expense, data.names)
	snapshot.CashflowTrend = cashflowTrend(w, trend)
	snapshot.BudgetAdherence = budgetAdherence(data.budgets, byCategory, data.names)
	snapshot.Recurring = recurringSummary(data.rules, merchants, data.names)
	snapshot.Accounts = accountSummary(data.accounts)
	snapshot.Flags = behaviorFlags(current, snapshot.SavingsRate, snapshot.CashflowTrend, snapshot.BudgetAdherence)

	return snapshot
}

func snapshotCurrency(data dataset) *string {
	for _, account := range data.accounts {
		if account.Currency != "" {
			currency := account.Currency
			return &currency
		}
	}
	for _, tx := range data.transactions {
		if tx.Currency != "" {
			currency := tx.Currency
			return &currency
		}
	}
	return nil
}

func categoryLabel(id uuid.UUID, names map[uuid.UUID]string) string {
	if label := RedactLabel(names[id]); label != "" {
		return label
	}
	return uncategorizedLabel
}

func categoryBreakdown(byCategory map[uuid.UUID]decimal.Decimal, uncategorized, totalExpense decimal.Decimal, names map[uuid.UUID]string) []CategoryShare {
	merged := map[string]decimal.Decimal{}
	for id, total := range byCategory {
		label := categoryLabel(id, names)
		merged[label] = merged[label].Add(total)
	}
	if uncategorized.IsPositive() {
		merged[uncategorizedLabel] = merged[uncategorizedLabel].Add(uncategorized)
	}

	shares := make([]CategoryShare, 0, len(merged))
	totals := make(map[string]decimal.Decimal, len(merged))
	for label, total := range merged {
		if !total.IsPositive() {
			continue
		}
		totals[label] = total
		shares = append(shares, CategoryShare{
			Name:         label,
			Total:        round2(total),
			SharePercent: percentOf(total, totalExpense),
		})
	}

	sort.Slice(shares, func(i, j int) bool {
		if cmp := totals[shares[i].Name].Cmp(totals[shares[j].Name]); cmp != 0 {
			return cmp > 0
		}
		return shares[i].Name < shares[j].Name
	})
	if len(shares) > maxCategoryShares {
		shares = shares[:maxCategoryShares]
	}
	return shares
}

func cashflowTrend(w window, trend [3]sums) []TrendPoint {
	points := make([]TrendPoint, 0, len(trend))
	for i, s := range trend {
		totals := s.totals()
		points = append(points, TrendPoint{
			Month:   w.trendStart.AddDate(0, i, 0).Format(monthLayout),
			Income:  totals.Income,
			Expense: totals.Expense,
			Net:     totals.Net,
		})
	}
	return points
}

// budgetStatus классифицирует процент использования бюджета.
// budgetStatus классифицирует неокругленный процент использования лимита.
func budgetStatus(percentUsed decimal.Decimal) BudgetStatus {
	switch {
	case percentUsed.GreaterThanOrEqual(decimal.NewFromInt(overLimitPercent)):
		return BudgetOverLimit
	case percentUsed.GreaterThanOrEqual(decimal.NewFromInt(nearLimitPercent)):
		return BudgetNearLimit
	default:
		return BudgetOnTrack
	}
}

func budgetAdherence(budgets []models.Budget, spentByCategory map[uuid.UUID]decimal.Decimal, names map[uuid.UUID]string) BudgetAdherence {
	adherence := BudgetAdherence{Items: make([]BudgetItem, 0, len(budgets))}

	for _, budget := range budgets {
		spent := spentByCategory[budget.CategoryID]

		var percentUsed decimal.Decimal
		switch {
		case budget.LimitAmount.IsPositive():
			percentUsed = shareOf(spent, budget.LimitAmount)
		case spent.IsPositive():
			percentUsed = decimal.NewFromInt(overLimitPercent)
		}

		status := budgetStatus(percentUsed)
		switch status {
		case BudgetOverLimit:
			adherence.OverLimit++
		case BudgetNearLimit:
			adherence.NearLimit++
		default:
			adherence.OnTrack++
		}

		adherence.Items = append(adherence.Items, BudgetItem{
			Category:        categoryLabel(budget.CategoryID, names),
			LimitAmount:     round2(budget.LimitAmount),
			SpentAmount:     round2(spent),
			RemainingAmount: round2(budget.LimitAmount.Sub(spent)),
			PercentUsed:     round2(percentUsed),
			Status:          status,
		})
	}

	sort.Slice(adherence.Items, func(i, j int) bool {
		if adherence.Items[i].PercentUsed != adherence.Items[j].PercentUsed {
			return adherence.Items[i].PercentUsed > adherence.Items[j].PercentUsed
		}
		return adherence.Items[i].Category < adherence.Items[j].Category
	})
	if len(adherence.Items) > maxBudgetItems {
		adherence.Items = adherence.Items[:maxBudgetItems]
	}
	return adherence
}

// monthlyEquivalent приводит сумму правила к месячному эквиваленту по его периодичности.
func monthlyEquivalent(amount decimal.Decimal, cadence string) decimal.Decimal {
	switch cadence {
	case "daily":
		return amount.Mul(decimal.NewFromInt(30))
	case "weekly":
		return amount.Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12))
	case "biweekly":
		return amount.Mul(decimal.NewFromInt(26)).Div(decimal.NewFromInt(12))
	case "quarterly":
		return amount.Div(decimal.NewFromInt(3))
	case "yearly", "annual", "annually":
		return amount.Div(decimal.NewFromInt(12))
	default:
		return amount
	}
}

func ruleLabel(rule models.RecurringRule, names map[uuid.UUID]string) string {
	if rule.Description != nil {
		if label := RedactLabel(*rule.Description); label != "" {
			return label
		}
	}
	if rule.CategoryID != nil {
		if label := RedactLabel(names[*rule.CategoryID]); label != "" {
			return label
		}
	}
	return rule.Kind
}

func recurringSummary(rules []models.RecurringRule, merchants map[string]*cluster, names map[uuid.UUID]string) RecurringSummary {
	summary := RecurringSummary{
		Rules:            make([]RecurringRuleRow, 0),
		MerchantClusters: make([]MerchantCluster, 0),
	}

	monthly := decimal.Zero
	amounts := make([]decimal.Decimal, 0, len(rules))
	for _, rule := range rules {
		if rule.Kind != models.RecurringKindExpense {
			continue
		}
		monthly = monthly.Add(monthlyEquivalent(rule.Amount, rule.Cadence))
		amounts = append(amounts, rule.Amount)
		summary.Rules = append(summary.Rules, RecurringRuleRow{
			Kind:      rule.Kind,
			Cadence:   rule.Cadence,
			Amount:    round2(rule.Amount),
			NextRunAt: rule.NextRunAt.UTC().Format(time.DateOnly),
			Label:     ruleLabel(rule, names),
		})
	}
	summary.MonthlyTotal = round2(monthly)

	order := make([]int, len(summary.Rules))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if cmp := amounts[order[i]].Cmp(amounts[order[j]]); cmp != 0 {
			return cmp > 0
		}
		return summary.Rules[order[i]].Label < summary.Rules[order[j]].Label
	})
	sorted := make([]RecurringRuleRow, 0, len(order))
	for _, i := range order {
		sorted = append(sorted, summary.Rules[i])
	}
	if len(sorted) > maxRecurringRules {
		sorted = sorted[:maxRecurringRules]
	}
	summary.Rules = sorted

	clusters := make([]*cluster, 0, len(merchants))
	for _, c := range merchants {
		if c.count >= minClusterCount {
			clusters = append(clusters, c)
		}
	}
	sort.Slice(clusters, func(i, j int) bool {
		if cmp := clusters[i].total.Cmp(clusters[j].total); cmp != 0 {
			return cmp > 0
		}
		return clusters[i].label < clusters[j].label
	})
	if len(clusters) > maxMerchantClusters {
		clusters = clusters[:maxMerchantClusters]
	}
	for _, c := range clusters {
		summary.MerchantClusters = append(summary.MerchantClusters, MerchantCluster{
			Label: c.label,
			Count: c.count,
			Total: round2(c.total),
		})
	}

	return summary
}

func accountSummary(accounts []models.Account) AccountSummary {
	total := decimal.Zero
	for _, account := range accounts {
		total = total.Add(account.Balance)
	}
	return AccountSummary{Count: len(accounts), TotalBalance: round2(total)}
}

// irregularIncome сообщает о нерегулярном доходе по трем точкам тренда.
func irregularIncome(trend []TrendPoint) bool {
	positive := make([]float64, 0, len(trend))
	zero := 0
	for _, point := range trend {
		switch {
		case point.Income > 0:
			positive = append(positive, point.Income)
		case point.Income == 0:
			zero++
		}
	}

	if len(positive) == 1 {
		return zero >= 1
	}
	if len(positive) < 2 {
		return false
	}

	lowest, highest := positive[0], positive[0]
	for _, value := range positive[1:] {
		lowest = math.Min(lowest, value)
		highest = math.Max(highest, value)
	}
	return highest/lowest >= irregularRatio
}

func behaviorFlags(current sums, savingsRate float64, trend []TrendPoint, adherence BudgetAdherence) BehaviorFlags {
	flags := BehaviorFlags{
		NegativeCashflow:       current.income.Sub(current.expense).IsNegative(),
		IrregularIncome:        irregularIncome(trend),
		OverspendingCategories: make([]string, 0),
	}

	switch {
	case current.income.IsPositive():
		flags.LowSavingsRate = savingsRate < lowSavingsRate
	case current.expense.IsPositive():
		flags.LowSavingsRate = true
	}

	for _, item := range adherence.Items {
		if item.Status == BudgetOverLimit {
			flags.OverspendingCategories = append(flags.OverspendingCategories, item.Category)
		}
	}
	return flags
}

func round2(value decimal.Decimal) float64 {
	return value.Round(2).InexactFloat64()
}

func percentOf(part, whole decimal.Decimal) float64 {
	return round2(shareOf(part, whole))
}

// shareOf возвращает неотрицательную долю part от whole в процентах без округления.
func shareOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	share := part.Mul(hundred).Div(whole)
	if share.IsNegative() {
		return decimal.Zero
	}
	return share
}
