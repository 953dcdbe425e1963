/*
Package report renders a reconciler.Result into a transport-agnostic Report.

A Report is a list of named sections in a fixed order:

	Regressed     (omitted when empty)
	LowBalance    (omitted when empty)
	NoFeeder      (omitted when empty)
	Stable        count only
	Rates         omitted when the table is empty
	Power Stats
	Summary

List sections render at most MaxEntries lines; Section.Total keeps the true
count and Section.Text appends an "… and N more" footer.

Voting power and balances are shown in MLD (1,000,000 base units) with
magnitude-dependent precision, see FormatMLD.

Build does no I/O. Delivery lives in the notify package.
*/
package report
