package domain

// User requests are transient projections of an upstream SCIM resource.
// Nothing here is persisted or cached locally.

type CreateUserRequest struct {
	UserName   string `json:"userName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	GivenName  string `json:"givenName" validate:"required"`
	FamilyName string `json:"familyName" validate:"required"`
	Password   string `json:"password" validate:"required,min=8"`
	Active     *bool  `json:"active"`
}

// UpdateUserRequest is sparse: only supplied fields reach the upstream
// payload, omitted fields are never touched.
type UpdateUserRequest struct {
	Email      *string `json:"email" validate:"omitempty,email"`
	GivenName  *string `json:"givenName"`
	FamilyName *string `json:"familyName"`
	Active     *bool   `json:"active"`
}

type ListUsersRequest struct {
	StartIndex string `json:"startIndex"`
	Count      string `json:"count"`
	Filter     string `json:"filter"`
}
