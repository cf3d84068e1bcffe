// Package gql exposes the comment operations as a GraphQL schema and executes
// GraphQL-over-HTTP requests against it.
package gql

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/cppla/commentboard/models"
)

// Operations is the set of comment operations the schema resolves against.
type Operations interface {
	Create(ctx context.Context, content string) (*models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	List(ctx context.Context) ([]*models.Comment, error)
	Upvote(ctx context.Context, id string) (*models.Comment, error)
	Downvote(ctx context.Context, id string) (*models.Comment, error)
}

// operationField is one entry of the Query or Mutation table.
type operationField struct {
	name        string
	description string
	typ         graphql.Output
	args        graphql.FieldConfigArgument
	resolve     graphql.FieldResolveFn
}

var commentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Comment",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.ID),
			Resolve: commentField(func(c *models.Comment) interface{} { return c.ID }),
		},
		"createdAt": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.DateTime),
			Resolve: commentField(func(c *models.Comment) interface{} { return c.CreatedAt }),
		},
		"updatedAt": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.DateTime),
			Resolve: commentField(func(c *models.Comment) interface{} { return c.UpdatedAt }),
		},
		"authorName": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: commentField(func(c *models.Comment) interface{} { return c.AuthorName }),
		},
		"content": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: commentField(func(c *models.Comment) interface{} { return c.Content }),
		},
		"upvotes": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.Int),
			Resolve: commentField(func(c *models.Comment) interface{} { return c.Upvotes }),
		},
	},
})

func commentField(get func(*models.Comment) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		c, ok := p.Source.(*models.Comment)
		if !ok || c == nil {
			return nil, fmt.Errorf("unexpected comment source %T", p.Source)
		}
		return get(c), nil
	}
}

var idArgs = graphql.FieldConfigArgument{
	"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
}

// NewSchema builds the Query and Mutation types on top of ops.
func NewSchema(ops Operations, log *zap.Logger) (graphql.Schema, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &resolvers{ops: ops, log: log}

	queries := []operationField{
		{
			name:        "commentById",
			description: "Get a single comment",
			typ:         commentType,
			args:        idArgs,
			resolve:     r.commentByID,
		},
		{
			name:        "comments",
			description: "Get the full list of comments",
			typ:         graphql.NewList(graphql.NewNonNull(commentType)),
			resolve:     r.comments,
		},
	}

	mutations := []operationField{
		{
			name:        "postComment",
			description: "Post a new comment (with auto-generated author)",
			typ:         commentType,
			args: graphql.FieldConfigArgument{
				"content": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			resolve: r.postComment,
		},
		{
			name:        "upvoteComment",
			description: "Increment the upvote count of this comment by one",
			typ:         commentType,
			args:        idArgs,
			resolve:     r.upvoteComment,
		},
		{
			name:        "downvoteComment",
			description: "Decrement the upvote count of this comment by one",
			typ:         commentType,
			args:        idArgs,
			resolve:     r.downvoteComment,
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: toFields(queries)}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: toFields(mutations)}),
	})
}

func toFields(table []operationField) graphql.Fields {
	fields := make(graphql.Fields, len(table))
	for _, f := range table {
		fields[f.name] = &graphql.Field{
			Name:        f.name,
			Description: f.description,
			Type:        f.typ,
			Args:        f.args,
			Resolve:     f.resolve,
		}
	}
	return fields
}

type resolvers struct {
	ops Operations
	log *zap.Logger
}

func (r *resolvers) commentByID(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	c, err := r.ops.GetByID(p.Context, id)
	if err != nil {
		return nil, r.fieldError(p, id, err)
	}
	return c, nil
}

func (r *resolvers) comments(p graphql.ResolveParams) (interface{}, error) {
	list, err := r.ops.List(p.Context)
	if err != nil {
		return nil, r.fieldError(p, "", err)
	}
	return list, nil
}

func (r *resolvers) postComment(p graphql.ResolveParams) (interface{}, error) {
	content, _ := p.Args["content"].(string)
	c, err := r.ops.Create(p.Context, content)
	if err != nil {
		return nil, r.fieldError(p, "", err)
	}
	return c, nil
}

func (r *resolvers) upvoteComment(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	c, err := r.ops.Upvote(p.Context, id)
	if err != nil {
		return nil, r.fieldError(p, id, err)
	}
	return c, nil
}

func (r *resolvers) downvoteComment(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	c, err := r.ops.Downvote(p.Context, id)
	if err != nil {
		return nil, r.fieldError(p, id, err)
	}
	return c, nil
}
