package command

import (
	"strconv"

	"golang.org/x/text/language"
	textmsg "golang.org/x/text/message"
)

// credits formats an amount of credits with digit grouping.
func credits(n int64) string {
	return textmsg.NewPrinter(language.English).Sprintf("%d", n)
}

// amount parses a credit amount argument.
func amount(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
