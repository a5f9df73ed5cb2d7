package domain

import dErrors "sevagate/pkg/domain-errors"

// Role is the coarse authorization role carried by a credential. The core
// consumes roles as identity claims only; profile management lives elsewhere.
type Role string

const (
	// RoleCustomer is the VLE, the original applicant who submits a document.
	RoleCustomer Role = "customer"
	// RoleDistributor verifies documents and produces receipts/certificates.
	RoleDistributor Role = "distributor"
	// RoleEmployee has read-only visibility into the workflow.
	RoleEmployee Role = "employee"
	// RoleAdmin triages documents and assigns distributors.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDistributor, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// ParseRole validates a role claim from its string form.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
	}
	return r, nil
}
