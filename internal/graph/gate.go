package graph

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/kube-rca/todo/internal/authctx"
)

// Middleware decorates a field resolver.
type Middleware func(next graphql.FieldResolveFn) graphql.FieldResolveFn

// Fields that require an authenticated user. Everything else is public.
var (
	protectedQueries   = []string{"todos", "todo"}
	protectedMutations = []string{"updateProfile", "deleteAccount", "createTodo", "updateTodo", "deleteTodo"}
)

// RequireUser rejects the field with UNAUTHORIZED when the context carries
// no identity. Sibling fields of the same request are unaffected.
func RequireUser(next graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if _, ok := authctx.UserFrom(p.Context); !ok {
			return nil, errUnauthorized
		}
		return next(p)
	}
}

// mapErrors converts service errors into coded GraphQL errors.
func mapErrors(next graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		out, err := next(p)
		if err != nil {
			return nil, toGraphQLError(p.Context, err)
		}
		return out, nil
	}
}

// protect wraps the named fields with mws, mws[0] outermost.
func protect(fields graphql.Fields, names []string, mws ...Middleware) error {
	for _, name := range names {
		f, ok := fields[name]
		if !ok {
			return fmt.Errorf("protect: unknown field %q", name)
		}
		f.Resolve = chain(f.Resolve, mws...)
	}
	return nil
}

func chain(resolve graphql.FieldResolveFn, mws ...Middleware) graphql.FieldResolveFn {
	if resolve == nil {
		resolve = graphql.DefaultResolveFn
	}
	for i := len(mws) - 1; i >= 0; i-- {
		resolve = mws[i](resolve)
	}
	return resolve
}
