package mutations

// MutationError is a validation or authorization failure returned as data in
// the mutation's result union. It is an expected business outcome, not an
// exception: the enclosing request still succeeds.
type MutationError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// DomainResult is the success variant of removeDomain.
type DomainResult struct {
	Status string `json:"status"`
}

// RemoveDomainResponse is the result union for removeDomain: exactly one of
// Result or Error is set.
type RemoveDomainResponse struct {
	Result *DomainResult  `json:"result,omitempty"`
	Error  *MutationError `json:"error,omitempty"`
}

// RemovedUser identifies the user unlinked by removeUserFromOrg.
type RemovedUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

// RemoveUserResult is the success variant of removeUserFromOrg.
type RemoveUserResult struct {
	Status string      `json:"status"`
	User   RemovedUser `json:"user"`
}

// RemoveUserResponse is the result union for removeUserFromOrg: exactly one
// of Result or Error is set.
type RemoveUserResponse struct {
	Result *RemoveUserResult `json:"result,omitempty"`
	Error  *MutationError    `json:"error,omitempty"`
}
