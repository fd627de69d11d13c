// Package srverr defines the error classes surfaced by the database
// service. Callers match on the class, not on message text.
package srverr

import "github.com/zeebo/errs"

var (
	// AccessDenied means the master password was missing or wrong.
	AccessDenied = errs.Class("access denied")
	// AlreadyExists means a target database name resolves to a live database.
	AlreadyExists = errs.Class("database already exists")
	// MethodNotFound means the dispatch method is not part of the service surface.
	MethodNotFound = errs.Class("method not found")
	// ProvisionFailed wraps a failed destructive SQL statement or external
	// process during create/duplicate/drop/rename.
	ProvisionFailed = errs.Class("provision failed")
	// RestoreFailed wraps a nonzero exit from the restore tooling.
	RestoreFailed = errs.Class("restore failed")
)
