package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/kube-rca/todo/internal/graph"
	"github.com/kube-rca/todo/internal/model"
)

type GraphQLHandler struct {
	schema graphql.Schema
}

func NewGraphQLHandler(schema graphql.Schema) *GraphQLHandler {
	return &GraphQLHandler{schema: schema}
}

// Serve godoc
// @Summary Execute a GraphQL operation
// @Description Field-level errors are returned with HTTP 200 and extensions.code. Send "Authorization: Bearer <accessToken>" for protected fields.
// @Tags graphql
// @Accept json
// @Produce json
// @Param request body model.GraphQLRequest true "GraphQL request"
// @Success 200 {object} model.GraphQLResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /graphql [post]
func (h *GraphQLHandler) Serve(c *gin.Context) {
	var req model.GraphQLRequest
	if c.Request.Method == http.MethodGet {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
			return
		}
		if raw := c.Query("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid variables"})
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "query is required"})
		return
	}

	result := graph.Execute(c.Request.Context(), h.schema, req)
	c.JSON(http.StatusOK, result)
}
