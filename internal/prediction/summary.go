package prediction

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/edgard/polybot/internal/inference"
)

const summaryHeader = "Detected Objects:\n"

// Summary is the outcome of one prediction. It is not modified after it has
// been persisted.
type Summary struct {
	// ID is the database identifier.
	ID             string
	PredictionID   string
	OriginalImage  string
	PredictedImage string
	Labels         []inference.Label
	Timestamp      time.Time
	// LocalImage is where the annotated image was downloaded.
	LocalImage string
}

// Caption renders the summary text sent with the annotated image.
func (s *Summary) Caption() string {
	return FormatLabels(s.Labels)
}

// FormatLabels counts labels per class and renders "Detected Objects:\n"
// followed by one "<Class>: <count>\n" line per class in first-seen order.
// Labels without a class are skipped.
func FormatLabels(labels []inference.Label) string {
	var order []string
	counts := make(map[string]int)
	for _, l := range labels {
		if strings.TrimSpace(l.Class) == "" {
			continue
		}
		if _, seen := counts[l.Class]; !seen {
			order = append(order, l.Class)
		}
		counts[l.Class]++
	}

	var b strings.Builder
	b.WriteString(summaryHeader)
	for _, class := range order {
		b.WriteString(capitalize(class))
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(counts[class]))
		b.WriteByte('\n')
	}
	return b.String()
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
