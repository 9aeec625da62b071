package router

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"marketdata/internal/market"
)

// Cache keys are pure, order-independent functions of the logical request
// parameters: symbol sets are normalized and sorted, time ranges reduced to
// epoch seconds. Two semantically identical requests must produce
// byte-identical keys. Each kind carries a namespace prefix so EvictPrefix
// can drop one kind wholesale.

func quotesKey(symbols []string) string {
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			norm = append(norm, s)
		}
	}
	sort.Strings(norm)
	return "quotes:" + strings.Join(norm, ",")
}

func barsKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("bars:%s:%d:%d", normSymbol(symbol), from.Unix(), to.Unix())
}

func intradayKey(symbol string) string {
	return "intraday:" + normSymbol(symbol)
}

func overviewKey() string {
	return "overview:market"
}

func newsKey(symbol string, r market.Range) string {
	return fmt.Sprintf("news:%s:%d:%d", normSymbol(symbol), r.From.Unix(), r.To.Unix())
}

func calendarKey(r market.Range) string {
	return fmt.Sprintf("calendar:%d:%d", r.From.Unix(), r.To.Unix())
}

func sectorsKey() string {
	return "sectors:snapshot"
}

func normSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
