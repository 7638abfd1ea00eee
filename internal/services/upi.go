package services

import (
	"net/url"
	"strconv"
	"strings"
)

// BuildUPILink returns upi://pay?pa=&pn=&am=&cu=INR&tn= with the amount in
// rupees to two decimals. Values are percent-encoded, spaces as %20.
func BuildUPILink(handle, payee string, amount float64, note string) string {
	esc := func(v string) string {
		return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
	}

	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(esc(handle))
	b.WriteString("&pn=")
	b.WriteString(esc(payee))
	b.WriteString("&am=")
	b.WriteString(strconv.FormatFloat(amount, 'f', 2, 64))
	b.WriteString("&cu=INR&tn=")
	b.WriteString(esc(note))
	return b.String()
}
