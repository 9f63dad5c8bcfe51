package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GraphQLRequest is the standard GraphQL-over-HTTP request body.
type GraphQLRequest struct {
	Query         string         `json:"query" form:"query"`
	OperationName string         `json:"operationName,omitempty" form:"operationName"`
	Variables     map[string]any `json:"variables,omitempty" form:"-"`
}

// GraphQLError mirrors one entry of the GraphQL "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLResponse is the wire shape returned by /graphql.
type GraphQLResponse struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
