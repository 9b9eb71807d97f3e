package actions

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/booksweep/booksweep/pkg/variables"
)

// reportKind is the naming rule for one workflow's export.
type reportKind struct {
	prefix string
	name   string
	vat    bool
}

// reportKinds maps workflow names to the numbered filenames accountants
// expect in the client folder. Unknown workflows fall back to their own
// name with no number.
var reportKinds = map[string]reportKind{
	"trial_balance_report":      {prefix: "1", name: "Trial Balance"},
	"profit_and_loss":           {prefix: "2", name: "Profit and Loss"},
	"aged_receivables_detail":   {prefix: "3", name: "Aged Receivables Detail"},
	"aged_payables_detail":      {prefix: "4", name: "Aged Payables Detail"},
	"account_transactions":      {prefix: "5", name: "Account Transactions"},
	"receivable_invoice_detail": {prefix: "6", name: "Receivable Invoice Detail"},
	"payable_invoice_detail":    {prefix: "7", name: "Payable Invoice Detail"},
	"vat_returns":               {prefix: "1", name: "VAT", vat: true},
	"vat_returns_export":        {prefix: "1", name: "VAT", vat: true},
	"get_financial_year_end":    {name: "Financial Year End"},
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// sanitizeCompany strips filesystem-hostile characters from a company name.
func sanitizeCompany(name string) string {
	if name == "" {
		return "Unknown"
	}

	return unsafeFilenameChars.ReplaceAllString(name, "")
}

// formatDateCompact renders a parseable date as ddMMyyyy. Unparseable input
// degrades to the input with spaces and dashes removed.
func formatDateCompact(s string) string {
	if s == "" {
		return ""
	}

	if t, ok := variables.ParseDate(s); ok {
		return t.Format("02012006")
	}

	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// downloadFilename builds the destination filename and client folder for an
// export. VAT exports carry their period as compact ddMMyyyy-ddMMyyyy taken
// from the loop's period variables. The result depends only on its inputs.
func downloadFilename(workflowName, companyName, ext, periodStart, periodEnd string) (filename, clientFolder string) {
	kind, ok := reportKinds[workflowName]
	if !ok {
		kind = reportKind{name: workflowName}
	}

	safeCompany := sanitizeCompany(companyName)
	clientFolder = safeCompany

	if kind.vat {
		if periodStart != "" && periodEnd != "" {
			period := formatDateCompact(periodStart) + "-" + formatDateCompact(periodEnd)
			filename = fmt.Sprintf("%s VAT_%s_%s%s", kind.prefix, period, safeCompany, ext)
		} else {
			filename = fmt.Sprintf("%s VAT_%s%s", kind.prefix, safeCompany, ext)
		}

		return filename, clientFolder
	}

	if kind.prefix != "" {
		filename = fmt.Sprintf("%s %s_%s%s", kind.prefix, kind.name, safeCompany, ext)
	} else {
		filename = fmt.Sprintf("%s_%s%s", kind.name, safeCompany, ext)
	}

	return filename, clientFolder
}

var vatFilenamePattern = regexp.MustCompile(`^(.+?)-(?:VAT|vat)`)
var filenameSeparators = regexp.MustCompile(`[-_]{2,}|_-_|-_|_-`)

// companyFromFilename recovers the company name from the export service's
// suggested filename conventions.
func companyFromFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	// Company_Name_-_Report_Name, the standard export form.
	if idx := strings.Index(stem, "_-_"); idx >= 0 {
		return strings.TrimSpace(strings.ReplaceAll(stem[:idx], "_", " "))
	}

	// Company-VAT... for VAT returns.
	if m := vatFilenamePattern.FindStringSubmatch(stem); m != nil {
		cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(m[1])

		return strings.TrimSpace(cleaned)
	}

	// First segment before any separator run.
	if parts := filenameSeparators.Split(stem, -1); len(parts) > 0 {
		return strings.TrimSpace(strings.ReplaceAll(parts[0], "_", " "))
	}

	return strings.TrimSpace(strings.ReplaceAll(stem, "_", " "))
}
