package repository

import (
	"strconv"
	"strings"
)

// formatVector renders an embedding as a pgvector literal ("[0.1,0.2,...]")
// so it can be bound as a text parameter and cast with ::vector.
func formatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
