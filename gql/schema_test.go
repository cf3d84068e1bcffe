package gql

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_Fields(t *testing.T) {
	schema, err := NewSchema(&memoryOps{}, nil)
	require.NoError(t, err)

	query := schema.QueryType().Fields()
	require.Contains(t, query, "commentById")
	require.Contains(t, query, "comments")
	assert.Equal(t, "Get a single comment", query["commentById"].Description)
	assert.Equal(t, "[Comment!]", query["comments"].Type.String())

	mutation := schema.MutationType().Fields()
	for _, name := range []string{"postComment", "upvoteComment", "downvoteComment"} {
		require.Contains(t, mutation, name)
		assert.Equal(t, "Comment", mutation[name].Type.String())
	}
	require.Len(t, mutation["postComment"].Args, 1)
	assert.Equal(t, "content", mutation["postComment"].Args[0].Name())
	assert.Equal(t, "String!", mutation["postComment"].Args[0].Type.String())
}

func TestNewSchema_CommentType(t *testing.T) {
	schema, err := NewSchema(&memoryOps{}, nil)
	require.NoError(t, err)

	comment, ok := schema.Type("Comment").(*graphql.Object)
	require.True(t, ok)

	want := map[string]string{
		"id":         "ID!",
		"createdAt":  "DateTime!",
		"updatedAt":  "DateTime!",
		"authorName": "String!",
		"content":    "String!",
		"upvotes":    "Int!",
	}
	fields := comment.Fields()
	require.Len(t, fields, len(want))
	for name, typ := range want {
		require.Contains(t, fields, name)
		assert.Equal(t, typ, fields[name].Type.String(), name)
	}
}

func TestCommentById_MissingReturnsNullWithError(t *testing.T) {
	schema, err := NewSchema(&memoryOps{}, nil)
	require.NoError(t, err)

	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: `{ commentById(id: "nope") { id } }`,
	})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "comment nope not found", result.Errors[0].Message)
	assert.Equal(t, map[string]interface{}{"commentById": nil}, result.Data)
}
