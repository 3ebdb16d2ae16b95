package core

import (
	"math"
	"strconv"
	"strings"
)

// LineItem is one (article, quantity) pair of an order.
type LineItem struct {
	Article  string `json:"article"`
	Quantity int32  `json:"quantity"`
}

// ParseLineItems decodes "article, quantity, article, quantity, ..." into
// line items. A pair whose quantity has no digits or is not positive is
// dropped on its own, as is a trailing article without a quantity.
func ParseLineItems(raw string) []LineItem {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tokens := make([]string, len(parts))
	for i, p := range parts {
		tokens[i] = strings.TrimSpace(StripQuotes(strings.TrimSpace(p)))
	}

	var items []LineItem
	for i := 0; i+1 < len(tokens); i += 2 {
		article := tokens[i]
		qty, ok := parseQuantity(tokens[i+1])
		if article == "" || !ok {
			continue
		}
		items = append(items, LineItem{Article: article, Quantity: qty})
	}
	return items
}

// parseQuantity keeps only the digits of s ("3 шт." -> 3).
func parseQuantity(s string) (int32, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil || n <= 0 {
		return 0, false
	}
	return int32(n), true
}

// MergeLineItems sums quantities of repeated articles, keeping first-seen order.
func MergeLineItems(items []LineItem) []LineItem {
	pos := make(map[string]int, len(items))
	var out []LineItem
	for _, it := range items {
		if i, ok := pos[it.Article]; ok {
			sum := int64(out[i].Quantity) + int64(it.Quantity)
			if sum > math.MaxInt32 {
				sum = math.MaxInt32
			}
			out[i].Quantity = int32(sum)
			continue
		}
		pos[it.Article] = len(out)
		out = append(out, it)
	}
	return out
}

// FormatLineItems renders items as "A1 (2 шт.), A2 (1 шт.)".
func FormatLineItems(items []LineItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Article + " (" + strconv.Itoa(int(it.Quantity)) + " шт.)"
	}
	return strings.Join(parts, ", ")
}
