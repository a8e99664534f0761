// Package policy is the storage-boundary authorization layer. Every data
// access carries an explicit Principal; nothing about authorization lives in
// ambient or global state, so decisions are testable in isolation from
// network identity.
package policy

import "errors"

// ErrPermissionDenied is returned for any operation the principal may not
// perform. Denials fail closed before any storage statement runs.
var ErrPermissionDenied = errors.New("permission denied")

// Principal identifies the caller class.
type Principal int

const (
	// PrincipalAnonymous is the untrusted desktop client, holding nothing but
	// the network credential baked into the build.
	PrincipalAnonymous Principal = iota
	// PrincipalPrivileged is administrator / backend automation. It bypasses
	// the per-resource rules entirely.
	PrincipalPrivileged
)

func (p Principal) String() string {
	switch p {
	case PrincipalAnonymous:
		return "anonymous"
	case PrincipalPrivileged:
		return "privileged"
	default:
		return "unknown"
	}
}

type Resource string

const (
	ResourceLicense      Resource = "licenses"
	ResourceActivityLog  Resource = "activity_logs"
	ResourceAppVersion   Resource = "app_versions"
	ResourceAdminSetting Resource = "admin_settings"
)

type Operation string

const (
	OpInsert Operation = "insert"
	OpSelect Operation = "select"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// anonymousRules is the per-resource, per-operation grant table for the
// anonymous principal. License read/update is intentionally unconditional
// with no per-row ownership binding; that matches the shipped behavior and
// must not be quietly tightened.
var anonymousRules = map[Resource]map[Operation]bool{
	ResourceLicense: {
		OpInsert: true,
		OpSelect: true,
		OpUpdate: true,
		OpDelete: false,
	},
	ResourceActivityLog: {
		OpInsert: true,
		OpSelect: true,
		OpUpdate: false,
		OpDelete: false,
	},
	ResourceAppVersion: {
		OpInsert: false,
		OpSelect: true, // restricted to is_active rows, see SelectRowFilter
		OpUpdate: false,
		OpDelete: false,
	},
	ResourceAdminSetting: {
		OpInsert: false,
		OpSelect: false,
		OpUpdate: false,
		OpDelete: false,
	},
}

// Allows reports whether the principal may perform op on resource. Unknown
// resources and operations are denied.
func Allows(p Principal, resource Resource, op Operation) bool {
	if p == PrincipalPrivileged {
		return true
	}
	ops, ok := anonymousRules[resource]
	if !ok {
		return false
	}
	return ops[op]
}

// Authorize is the checked variant of Allows.
func Authorize(p Principal, resource Resource, op Operation) error {
	if !Allows(p, resource, op) {
		return ErrPermissionDenied
	}
	return nil
}

// SelectRowFilter returns a SQL condition limiting which rows the principal
// may read from resource, or "" when no filter applies.
func SelectRowFilter(p Principal, resource Resource) string {
	if p == PrincipalAnonymous && resource == ResourceAppVersion {
		return "is_active = true"
	}
	return ""
}
