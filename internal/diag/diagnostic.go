package diag

type Diagnostic struct {
	Severity Severity
	Code     Code
	// Subject is the dotted resource name the finding concerns, "" for
	// run-wide findings.
	Subject string
	Message string
}
