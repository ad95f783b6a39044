package pipeline

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsInvoice bool
	Score     float64
	Reason    string
}

var detectKeywords = []string{"factura", "invoice", "consumo", "suministro", "recibo", "kwh", "importe", "peaje"}

var reAmountPattern = regexp.MustCompile(`[\d.,]+\s*(?:€|eur)`)

// DetectInvoiceEmail scores how likely an email is to carry an invoice
// worth extracting. Pure rules, no model: keyword hits in subject and
// body, currency amounts, and attachment types.
func DetectInvoiceEmail(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	amountHits := len(reAmountPattern.FindAllString(text, 3))
	if amountHits >= 2 {
		score += 0.3
	} else if amountHits == 1 {
		score += 0.15
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".pdf") || strings.HasSuffix(ln, ".xlsx") ||
			strings.HasSuffix(ln, ".csv") || strings.HasSuffix(ln, ".xls") {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}

	isInvoice := score >= 0.45
	reason := "rules_negative"
	if isInvoice {
		reason = "rules_positive"
	}

	return DetectResult{IsInvoice: isInvoice, Score: score, Reason: reason}
}
