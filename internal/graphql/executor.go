package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

// executableSchema executes validated operations against a Resolver. Root
// fields and Event.rawRow run through the operation's resolver middleware so
// handler extensions see them; Event list elements are marshaled concurrently
// so their rawRow lookups share one loader batch.
type executableSchema struct {
	schema   *ast.Schema
	resolver *Resolver
}

// NewExecutableSchema binds r to the embedded schema.
func NewExecutableSchema(r *Resolver) (gqlgen.ExecutableSchema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})
	if err != nil {
		return nil, fmt.Errorf("failed to load graphql schema: %w", err)
	}
	return &executableSchema{schema: schema, resolver: r}, nil
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, rawArgs map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) gqlgen.ResponseHandler {
	opCtx := gqlgen.GetOperationContext(ctx)

	var typeName string
	switch opCtx.Operation.Operation {
	case ast.Query:
		typeName = "Query"
	case ast.Mutation:
		typeName = "Mutation"
	}

	ec := &executionContext{OperationContext: opCtx, resolver: e.resolver}
	first := true
	return func(ctx context.Context) *gqlgen.Response {
		if !first {
			return nil
		}
		first = false

		if typeName == "" {
			return gqlgen.ErrorResponse(ctx, "unsupported GraphQL operation")
		}
		data, err := json.Marshal(ec.executeRoot(ctx, typeName, opCtx.Operation.SelectionSet))
		if err != nil {
			return gqlgen.ErrorResponse(ctx, "failed to encode response: %v", err)
		}
		return &gqlgen.Response{Data: data, Errors: ec.errors()}
	}
}

type executionContext struct {
	*gqlgen.OperationContext
	resolver *Resolver

	mu   sync.Mutex
	errs gqlerror.List
}

func (ec *executionContext) addError(path ast.Path, err error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.errs = append(ec.errs, &gqlerror.Error{Err: err, Message: err.Error(), Path: path})
}

func (ec *executionContext) errors() gqlerror.List {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.errs
}

// resolve runs fn behind the resolver middleware. ctx must already carry the
// field context.
func (ec *executionContext) resolve(ctx context.Context, fn gqlgen.Resolver) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("internal system error")
		}
	}()
	if ec.ResolverMiddleware == nil {
		return fn(ctx)
	}
	return ec.ResolverMiddleware(ctx, fn)
}

func (ec *executionContext) executeRoot(ctx context.Context, typeName string, sel ast.SelectionSet) any {
	fields := gqlgen.CollectFields(ec.OperationContext, sel, []string{typeName})
	out := newFieldSet(len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out.add(field.Alias, typeName)
			continue
		case "__schema", "__type":
			ec.addError(ast.Path{ast.PathName(field.Alias)}, fmt.Errorf("introspection is not available"))
			out.add(field.Alias, nil)
			continue
		}

		args := field.ArgumentMap(ec.Variables)
		fc := &gqlgen.FieldContext{Object: typeName, Field: field, Args: args, IsMethod: true, IsResolver: true}
		fieldCtx := gqlgen.WithFieldContext(ctx, fc)
		res, err := ec.resolve(fieldCtx, func(ctx context.Context) (any, error) {
			return ec.resolveRootField(ctx, typeName, field.Name, args)
		})
		if err != nil {
			ec.addError(fc.Path(), err)
			if field.Definition != nil && field.Definition.Type.NonNull {
				return nil
			}
			out.add(field.Alias, nil)
			continue
		}
		out.add(field.Alias, ec.marshalValue(fieldCtx, field.Selections, res))
	}
	return out
}

func (ec *executionContext) resolveRootField(ctx context.Context, typeName, name string, args map[string]any) (any, error) {
	r := ec.resolver
	switch typeName + "." + name {
	case "Query.events":
		limit, err := optionalInt(args["limit"])
		if err != nil {
			return nil, err
		}
		return r.Events(ctx, limit)
	case "Query.latest":
		return r.Latest(ctx)
	case "Query.poller":
		return r.Poller(ctx)
	case "Query.sources":
		return r.Sources(ctx)
	case "Query.session":
		return r.Session(ctx)
	case "Mutation.login":
		input, err := loginInputFromArg(args["input"])
		if err != nil {
			return nil, err
		}
		return r.Login(ctx, input)
	case "Mutation.logout":
		return r.Logout(ctx)
	case "Mutation.clearHistory":
		return r.ClearHistory(ctx)
	case "Mutation.updatePoller":
		input, err := pollerInputFromArg(args["input"])
		if err != nil {
			return nil, err
		}
		return r.UpdatePoller(ctx, input)
	}
	return nil, fmt.Errorf("unknown field %s.%s", typeName, name)
}

func (ec *executionContext) marshalValue(ctx context.Context, sel ast.SelectionSet, v any) any {
	switch v := v.(type) {
	case []*Event:
		return ec.marshalEvents(ctx, sel, v)
	case *Event:
		if v == nil {
			return nil
		}
		return ec.marshalEvent(ctx, sel, v)
	case *PollerStatus:
		if v == nil {
			return nil
		}
		return ec.marshalPollerStatus(sel, v)
	case []*SourceTable:
		out := make([]any, len(v))
		for i, t := range v {
			out[i] = ec.marshalSourceTable(sel, t)
		}
		return out
	case *Session:
		if v == nil {
			return nil
		}
		return ec.marshalSession(sel, v)
	default:
		return v
	}
}

func (ec *executionContext) marshalEvents(ctx context.Context, sel ast.SelectionSet, events []*Event) []any {
	out := make([]any, len(events))
	var wg sync.WaitGroup
	for i, e := range events {
		wg.Add(1)
		go func(i int, e *Event) {
			defer wg.Done()
			elemCtx := gqlgen.WithFieldContext(ctx, &gqlgen.FieldContext{Index: &i, Result: e})
			out[i] = ec.marshalEvent(elemCtx, sel, e)
		}(i, e)
	}
	wg.Wait()
	return out
}

func (ec *executionContext) marshalEvent(ctx context.Context, sel ast.SelectionSet, e *Event) *fieldSet {
	fields := gqlgen.CollectFields(ec.OperationContext, sel, []string{"Event"})
	out := newFieldSet(len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out.add(field.Alias, "Event")
		case "id":
			out.add(field.Alias, e.ID)
		case "type":
			out.add(field.Alias, e.Type)
		case "source":
			out.add(field.Alias, e.Source)
		case "description":
			out.add(field.Alias, e.Description)
		case "status":
			out.add(field.Alias, e.Status)
		case "timestamp":
			out.add(field.Alias, e.Timestamp)
		case "time":
			out.add(field.Alias, e.Time)
		case "rawId":
			out.add(field.Alias, e.RawID)
		case "rawRow":
			fc := &gqlgen.FieldContext{Object: "Event", Field: field, Args: map[string]any{}, IsMethod: true, IsResolver: true}
			res, err := ec.resolve(gqlgen.WithFieldContext(ctx, fc), func(ctx context.Context) (any, error) {
				return ec.resolver.EventRawRow(ctx, e)
			})
			if err != nil {
				ec.addError(fc.Path(), err)
				res = nil
			}
			out.add(field.Alias, res)
		default:
			out.add(field.Alias, nil)
		}
	}
	return out
}

func (ec *executionContext) marshalPollerStatus(sel ast.SelectionSet, s *PollerStatus) *fieldSet {
	fields := gqlgen.CollectFields(ec.OperationContext, sel, []string{"PollerStatus"})
	out := newFieldSet(len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out.add(field.Alias, "PollerStatus")
		case "rateMs":
			out.add(field.Alias, s.RateMs)
		case "source":
			out.add(field.Alias, s.Source)
		case "paused":
			out.add(field.Alias, s.Paused)
		case "limit":
			out.add(field.Alias, s.Limit)
		case "processedKeys":
			out.add(field.Alias, s.ProcessedKeys)
		case "feedSize":
			out.add(field.Alias, s.FeedSize)
		case "lastTickAt":
			out.add(field.Alias, s.LastTickAt)
		case "lastError":
			out.add(field.Alias, s.LastError)
		case "lastErrorAt":
			out.add(field.Alias, s.LastErrorAt)
		default:
			out.add(field.Alias, nil)
		}
	}
	return out
}

func (ec *executionContext) marshalSourceTable(sel ast.SelectionSet, t *SourceTable) *fieldSet {
	fields := gqlgen.CollectFields(ec.OperationContext, sel, []string{"SourceTable"})
	out := newFieldSet(len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out.add(field.Alias, "SourceTable")
		case "name":
			out.add(field.Alias, t.Name)
		case "label":
			out.add(field.Alias, t.Label)
		case "timestampColumn":
			out.add(field.Alias, t.TimestampColumn)
		case "idColumn":
			out.add(field.Alias, t.IDColumn)
		case "active":
			out.add(field.Alias, t.Active)
		default:
			out.add(field.Alias, nil)
		}
	}
	return out
}

func (ec *executionContext) marshalSession(sel ast.SelectionSet, s *Session) *fieldSet {
	fields := gqlgen.CollectFields(ec.OperationContext, sel, []string{"Session"})
	out := newFieldSet(len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out.add(field.Alias, "Session")
		case "token":
			out.add(field.Alias, s.Token)
		case "createdAt":
			out.add(field.Alias, s.CreatedAt)
		case "profile":
			out.add(field.Alias, ec.marshalUserProfile(field.Selections, s.Profile))
		default:
			out.add(field.Alias, nil)
		}
	}
	return out
}

func (ec *executionContext) marshalUserProfile(sel ast.SelectionSet, p *UserProfile) *fieldSet {
	fields := gqlgen.CollectFields(ec.OperationContext, sel, []string{"UserProfile"})
	out := newFieldSet(len(fields))
	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out.add(field.Alias, "UserProfile")
		case "name":
			out.add(field.Alias, p.Name)
		case "email":
			out.add(field.Alias, p.Email)
		case "role":
			out.add(field.Alias, p.Role)
		default:
			out.add(field.Alias, nil)
		}
	}
	return out
}

// fieldSet is a JSON object that keeps the selection order.
type fieldSet struct {
	keys   []string
	values []any
}

func newFieldSet(size int) *fieldSet {
	return &fieldSet{keys: make([]string, 0, size), values: make([]any, 0, size)}
}

func (f *fieldSet) add(key string, value any) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
}

func (f *fieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Argument decoding. Literal ints arrive as int64, variables as json.Number.

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

func optionalInt(v any) (*int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	i := int(n)
	return &i, nil
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func optionalBool(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func loginInputFromArg(v any) (LoginInput, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return LoginInput{}, fmt.Errorf("input must be an object")
	}
	key, _ := m["key"].(string)
	return LoginInput{
		Key:   key,
		Name:  optionalString(m["name"]),
		Email: optionalString(m["email"]),
		Role:  optionalString(m["role"]),
	}, nil
}

func pollerInputFromArg(v any) (PollerInput, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return PollerInput{}, fmt.Errorf("input must be an object")
	}
	input := PollerInput{
		Source: optionalString(m["source"]),
		Paused: optionalBool(m["paused"]),
	}
	if raw, ok := m["rateMs"]; ok && raw != nil {
		ms, err := toInt64(raw)
		if err != nil {
			return PollerInput{}, fmt.Errorf("rateMs: %w", err)
		}
		input.RateMs = &ms
	}
	return input, nil
}
