package graphql

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/crmql/graph"
	"github.com/rpattn/crmql/internal/filter"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/huandu/xstrings"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// CodeBadUserInput marks errors caused by client supplied values.
const CodeBadUserInput = "BAD_USER_INPUT"

// inputError is an argument the client got wrong.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func badInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// ErrorPresenter tags client input errors with code BAD_USER_INPUT. Filter
// errors also list the offending filter fields under "filters".
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	out := gql.DefaultErrorPresenter(ctx, err)
	if out == nil {
		return nil
	}

	var (
		verr *filter.ValidationError
		serr *graph.ScalarError
		ierr *inputError
	)
	switch {
	case errors.As(err, &verr):
		tagBadInput(out, argumentNames(verr.Filters()))
	case errors.As(err, &serr):
		var names []string
		if name, ok := filterField(out.Path); ok {
			names = []string{name}
		}
		tagBadInput(out, names)
	case errors.As(err, &ierr):
		tagBadInput(out, nil)
	}
	return out
}

func tagBadInput(e *gqlerror.Error, filters []string) {
	if e.Extensions == nil {
		e.Extensions = map[string]any{}
	}
	e.Extensions["code"] = CodeBadUserInput
	if len(filters) > 0 {
		e.Extensions["filters"] = filters
	}
}

// filterField finds the input field named right after the filter argument.
func filterField(path ast.Path) (string, bool) {
	for i := 0; i+1 < len(path); i++ {
		if name, ok := path[i].(ast.PathName); ok && name == "filter" {
			if field, ok := path[i+1].(ast.PathName); ok {
				return string(field), true
			}
		}
	}
	return "", false
}

// argumentNames maps filter names back to the camelCase input fields the
// client sent.
func argumentNames(filters []string) []string {
	out := make([]string, len(filters))
	for i, name := range filters {
		out[i] = xstrings.FirstRuneToLower(xstrings.ToCamelCase(name))
	}
	return out
}
