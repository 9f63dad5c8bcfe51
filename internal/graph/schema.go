// Package graph builds the GraphQL schema and maps service results and
// errors onto it.
package graph

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/kube-rca/todo/internal/model"
)

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"email":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"name":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"isVerified": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"createdAt":  &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
	},
})

var todoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Todo",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"title":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"description": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"completed":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"dueDate":     &graphql.Field{Type: graphql.DateTime},
		"isOverdue":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		"updatedAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
	},
})

var authPayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AuthPayload",
	Fields: graphql.Fields{
		"accessToken":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"refreshToken": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"user":         &graphql.Field{Type: graphql.NewNonNull(userType)},
	},
})

var refreshPayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RefreshPayload",
	Fields: graphql.Fields{
		"accessToken": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var messagePayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MessagePayload",
	Fields: graphql.Fields{
		"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

func inputObject(name string, fields graphql.InputObjectConfigFieldMap) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{Name: name, Fields: fields})
}

var (
	registerInput = inputObject("RegisterInput", graphql.InputObjectConfigFieldMap{
		"email":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"password": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"name":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	})
	loginInput = inputObject("LoginInput", graphql.InputObjectConfigFieldMap{
		"email":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"password": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	})
	updateProfileInput = inputObject("UpdateProfileInput", graphql.InputObjectConfigFieldMap{
		"name":     &graphql.InputObjectFieldConfig{Type: graphql.String},
		"password": &graphql.InputObjectFieldConfig{Type: graphql.String},
	})
	createTodoInput = inputObject("CreateTodoInput", graphql.InputObjectConfigFieldMap{
		"title":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"description": &graphql.InputObjectFieldConfig{Type: graphql.String, DefaultValue: ""},
		"dueDate":     &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
	})
	updateTodoInput = inputObject("UpdateTodoInput", graphql.InputObjectConfigFieldMap{
		"title":        &graphql.InputObjectFieldConfig{Type: graphql.String},
		"description":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		"completed":    &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"dueDate":      &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
		"clearDueDate": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
	})
)

func nonNullArg(t graphql.Input) *graphql.ArgumentConfig {
	return &graphql.ArgumentConfig{Type: graphql.NewNonNull(t)}
}

// NewSchema builds the schema. Protected fields are wrapped with
// RequireUser followed by any extra middlewares; the rest stay public.
// Root fields are nullable so a rejected field never discards its siblings.
func NewSchema(r *Resolver, extra ...Middleware) (graphql.Schema, error) {
	queries := graphql.Fields{
		"me": &graphql.Field{Type: userType, Resolve: r.me},
		"todos": &graphql.Field{
			Type:    graphql.NewList(graphql.NewNonNull(todoType)),
			Resolve: r.todos,
		},
		"todo": &graphql.Field{
			Type:    todoType,
			Args:    graphql.FieldConfigArgument{"id": nonNullArg(graphql.ID)},
			Resolve: r.todo,
		},
	}

	mutations := graphql.Fields{
		"register": &graphql.Field{
			Type:    messagePayloadType,
			Args:    graphql.FieldConfigArgument{"input": nonNullArg(registerInput)},
			Resolve: r.register,
		},
		"login": &graphql.Field{
			Type:    authPayloadType,
			Args:    graphql.FieldConfigArgument{"input": nonNullArg(loginInput)},
			Resolve: r.login,
		},
		"refreshToken": &graphql.Field{
			Type:    refreshPayloadType,
			Args:    graphql.FieldConfigArgument{"token": nonNullArg(graphql.String)},
			Resolve: r.refreshToken,
		},
		"verifyEmail": &graphql.Field{
			Type:    messagePayloadType,
			Args:    graphql.FieldConfigArgument{"token": nonNullArg(graphql.String)},
			Resolve: r.verifyEmail,
		},
		"requestPasswordReset": &graphql.Field{
			Type:    messagePayloadType,
			Args:    graphql.FieldConfigArgument{"email": nonNullArg(graphql.String)},
			Resolve: r.requestPasswordReset,
		},
		"resetPassword": &graphql.Field{
			Type: messagePayloadType,
			Args: graphql.FieldConfigArgument{
				"token":    nonNullArg(graphql.String),
				"password": nonNullArg(graphql.String),
			},
			Resolve: r.resetPassword,
		},
		"updateProfile": &graphql.Field{
			Type:    userType,
			Args:    graphql.FieldConfigArgument{"input": nonNullArg(updateProfileInput)},
			Resolve: r.updateProfile,
		},
		"deleteAccount": &graphql.Field{
			Type:    messagePayloadType,
			Resolve: r.deleteAccount,
		},
		"createTodo": &graphql.Field{
			Type:    todoType,
			Args:    graphql.FieldConfigArgument{"input": nonNullArg(createTodoInput)},
			Resolve: r.createTodo,
		},
		"updateTodo": &graphql.Field{
			Type: todoType,
			Args: graphql.FieldConfigArgument{
				"id":    nonNullArg(graphql.ID),
				"input": nonNullArg(updateTodoInput),
			},
			Resolve: r.updateTodo,
		},
		"deleteTodo": &graphql.Field{
			Type:    messagePayloadType,
			Args:    graphql.FieldConfigArgument{"id": nonNullArg(graphql.ID)},
			Resolve: r.deleteTodo,
		},
	}

	for _, fields := range []graphql.Fields{queries, mutations} {
		for _, f := range fields {
			f.Resolve = chain(f.Resolve, mapErrors)
		}
	}

	gate := append([]Middleware{RequireUser}, extra...)
	if err := protect(queries, protectedQueries, gate...); err != nil {
		return graphql.Schema{}, err
	}
	if err := protect(mutations, protectedMutations, gate...); err != nil {
		return graphql.Schema{}, err
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queries}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutations}),
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("build schema: %w", err)
	}
	return schema, nil
}

// Execute runs a single request against schema.
func Execute(ctx context.Context, schema graphql.Schema, req model.GraphQLRequest) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}
