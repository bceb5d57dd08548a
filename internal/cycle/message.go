package cycle

import (
	"fmt"

	"github.com/lepinkainen/everybook/internal/book"
)

// FormatMessage renders the post text. The year is appended only when known.
func FormatMessage(subject string, b book.Accepted) string {
	msg := fmt.Sprintf("A book about %s: %s by %s", subject, b.Title(), b.Author())
	if b.Year() != "" {
		msg += fmt.Sprintf(" (%s)", b.Year())
	}
	return msg
}
