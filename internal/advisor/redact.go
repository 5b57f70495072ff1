package advisor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxLabelRunes   = 40
	maxPreviewRunes = 400
)

var (
	emailPattern     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	longDigitPattern = regexp.MustCompile(`\d{5,}`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// RedactLabel удаляет e-mail и длинные числа, схлопывает пробелы и ограничивает длину.
func RedactLabel(value string) string {
	value = emailPattern.ReplaceAllString(value, " ")
	value = longDigitPattern.ReplaceAllString(value, " ")
	value = spacePattern.ReplaceAllString(value, " ")
	value = strings.Trim(value, " #*-_.,:;/")
	return truncateRunes(value, maxLabelRunes)
}

// RedactPreview маскирует e-mail и длинные числа в сыром тексте для диагностики.
func RedactPreview(value string) string {
	value = emailPattern.ReplaceAllString(value, "[email]")
	value = longDigitPattern.ReplaceAllString(value, "[number]")
	value = spacePattern.ReplaceAllString(strings.TrimSpace(value), " ")
	return truncateRunes(value, maxPreviewRunes)
}

func normalizeMerchant(description string) string {
	return strings.ToLower(RedactLabel(description))
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit]))
}
