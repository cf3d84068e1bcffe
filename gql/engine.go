package gql

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds the size of a POST body.
const DefaultMaxBodyBytes int64 = 1 << 20

const (
	contentTypeJSON    = "application/json"
	contentTypeGraphQL = "application/graphql"
	allowedMethods     = "GET, POST, OPTIONS"
)

var (
	errMissingQuery     = errors.New("must provide query string")
	errInvalidJSON      = errors.New("request body is not valid JSON")
	errInvalidVariables = errors.New("variables must be a JSON object")
	errBodyTooLarge     = errors.New("request body too large")
)

// Request is a GraphQL request as sent by clients.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Response is everything the HTTP layer has to write back.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Engine parses GraphQL-over-HTTP requests and executes them against a schema.
type Engine struct {
	schema       graphql.Schema
	log          *zap.Logger
	maxBodyBytes int64
}

// NewEngine creates an Engine for schema.
func NewEngine(schema graphql.Schema, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{schema: schema, log: log, maxBodyBytes: DefaultMaxBodyBytes}
}

// Execute handles one HTTP request. GET reads the URL parameters, POST reads the body,
// OPTIONS only advertises the allowed methods.
func (e *Engine) Execute(r *http.Request) *Response {
	var (
		req *Request
		err *transportError
	)

	switch r.Method {
	case http.MethodOptions:
		resp := newResponse(http.StatusNoContent, nil)
		resp.Header.Set("Allow", allowedMethods)
		return resp
	case http.MethodGet:
		req, err = requestFromQuery(r)
	case http.MethodPost:
		req, err = e.requestFromBody(r)
	default:
		resp := errorResponse(http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
		resp.Header.Set("Allow", allowedMethods)
		return resp
	}
	if err != nil {
		return errorResponse(err.status, err.Error())
	}

	if r.Method == http.MethodGet && operationType(req.Query, req.OperationName) == ast.OperationTypeMutation {
		resp := errorResponse(http.StatusMethodNotAllowed, "mutations must be sent with POST")
		resp.Header.Set("Allow", http.MethodPost)
		return resp
	}

	result := graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	if result.HasErrors() {
		e.log.Debug("graphql request returned errors",
			zap.String("operation", req.OperationName),
			zap.Int("errors", len(result.Errors)),
		)
	}

	body, mErr := json.Marshal(result)
	if mErr != nil {
		e.log.Error("graphql response encoding failed", zap.Error(mErr))
		return errorResponse(http.StatusInternalServerError, "internal server error")
	}
	return newResponse(http.StatusOK, body)
}

type transportError struct {
	status int
	err    error
}

func (e *transportError) Error() string { return e.err.Error() }

func requestFromQuery(r *http.Request) (*Request, *transportError) {
	values := r.URL.Query()
	req := &Request{
		Query:         values.Get("query"),
		OperationName: values.Get("operationName"),
	}
	if raw := values.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
			return nil, &transportError{status: http.StatusBadRequest, err: errInvalidVariables}
		}
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, &transportError{status: http.StatusBadRequest, err: errMissingQuery}
	}
	return req, nil
}

func (e *Engine) requestFromBody(r *http.Request) (*Request, *transportError) {
	mediaType := contentTypeJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, &transportError{status: http.StatusUnsupportedMediaType, err: errors.New("invalid Content-Type header")}
		}
		mediaType = mt
	}

	if r.Body == nil {
		return nil, &transportError{status: http.StatusBadRequest, err: errMissingQuery}
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, e.maxBodyBytes+1))
	if err != nil {
		return nil, &transportError{status: http.StatusBadRequest, err: errors.New("failed to read request body")}
	}
	if int64(len(body)) > e.maxBodyBytes {
		return nil, &transportError{status: http.StatusRequestEntityTooLarge, err: errBodyTooLarge}
	}

	req := &Request{}
	switch mediaType {
	case contentTypeJSON:
		if err := json.Unmarshal(body, req); err != nil {
			return nil, &transportError{status: http.StatusBadRequest, err: errInvalidJSON}
		}
	case contentTypeGraphQL:
		req.Query = string(body)
	default:
		return nil, &transportError{status: http.StatusUnsupportedMediaType, err: errors.New("unsupported Content-Type " + mediaType)}
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, &transportError{status: http.StatusBadRequest, err: errMissingQuery}
	}
	return req, nil
}

// operationType returns "query", "mutation" or "subscription" for the operation that would run.
// Unparsable documents return "" and are reported by execution instead.
func operationType(query, operationName string) string {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return ""
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName == "" || (op.Name != nil && op.Name.Value == operationName) {
			return op.Operation
		}
	}
	return ""
}

func newResponse(status int, body []byte) *Response {
	h := http.Header{}
	if body != nil {
		h.Set("Content-Type", contentTypeJSON+"; charset=utf-8")
	}
	h.Set("Cache-Control", "no-store")
	return &Response{Status: status, Header: h, Body: body}
}

func errorResponse(status int, message string) *Response {
	body, _ := json.Marshal(map[string]interface{}{
		"errors": []map[string]string{{"message": message}},
	})
	return newResponse(status, body)
}
