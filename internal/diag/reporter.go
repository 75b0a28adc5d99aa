package diag

import "fmt"

// Reporter — минимальный контракт получения диагностик от фаз.
// Реализации: BagReporter (кладёт в Bag), NopReporter, DedupReporter.
type Reporter interface {
	Report(code Code, sev Severity, subject string, msg string)
}

// ReportInfof emits a formatted SevInfo diagnostic.
func ReportInfof(r Reporter, code Code, subject, format string, args ...any) {
	if r == nil {
		return
	}
	r.Report(code, SevInfo, subject, fmt.Sprintf(format, args...))
}

// ReportWarningf emits a formatted SevWarning diagnostic.
func ReportWarningf(r Reporter, code Code, subject, format string, args ...any) {
	if r == nil {
		return
	}
	r.Report(code, SevWarning, subject, fmt.Sprintf(format, args...))
}

// BagReporter — адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, subject string, msg string) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{
		Severity: sev, Code: code, Subject: subject, Message: msg,
	})
}

// NopReporter discards every diagnostic.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, string, string) {}
