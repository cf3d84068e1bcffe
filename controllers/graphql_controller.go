package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/commentboard/gql"
)

// Executor turns an HTTP request into a GraphQL response.
type Executor interface {
	Execute(r *http.Request) *gql.Response
}

// GraphQLController hands /graphql requests to the engine and writes back whatever it answers.
type GraphQLController struct {
	executor Executor
}

func NewGraphQLController(executor Executor) *GraphQLController {
	return &GraphQLController{executor: executor}
}

// Serve handles GET, POST and OPTIONS on /graphql.
func (gc *GraphQLController) Serve(ctx *gin.Context) {
	resp := gc.executor.Execute(ctx.Request)

	header := ctx.Writer.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}

	ctx.Status(resp.Status)
	ctx.Writer.WriteHeaderNow()
	if len(resp.Body) > 0 {
		_, _ = ctx.Writer.Write(resp.Body)
	}
}
