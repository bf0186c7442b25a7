package assistant

import (
	"math"
	"strings"
)

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

type mdBuilder struct {
	strings.Builder
}

func (b *mdBuilder) heading(level int, text string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("#", level) + " " + text + "\n")
}

func (b *mdBuilder) para(text string) {
	b.WriteString("\n" + strings.TrimSpace(text) + "\n")
}

func (b *mdBuilder) list(items []string) {
	b.WriteString("\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}
