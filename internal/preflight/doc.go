// Package preflight provides readiness checks for the files, programs and
// session environment lwectl depends on.
//
// The CLI "lwectl status" command shows every result; "lwectl run" reports
// failed checks as warnings but still attempts the launch, since the engine
// script may locate its renderer in ways these checks cannot see.
package preflight
