// Package locate resolves a resource by name or id.
package locate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// Ref identifies a resource by name or id.
type Ref struct {
	Name string
	ID   string

	// Parameter names used in error messages, e.g. "vol_name" and "vol_id".
	NameParam string
	IDParam   string

	// blank is set when a name was given but holds only whitespace.
	blank bool
}

// NewRef builds a reference from optional parameters. Both identifiers are trimmed,
// so Name is the exact name a lookup searches for and a create uses.
func NewRef(name, id *string, nameParam, idParam string) Ref {
	r := Ref{NameParam: nameParam, IDParam: idParam}
	if name != nil {
		r.Name = strings.TrimSpace(*name)
		r.blank = *name != "" && r.Name == ""
	}
	if id != nil {
		r.ID = strings.TrimSpace(*id)
	}
	return r
}

// Given reports whether either identifier is set. A blank name counts as given so
// that Validate rejects it.
func (r Ref) Given() bool {
	return r.Name != "" || r.ID != "" || r.blank
}

// Validate enforces that name and id are mutually exclusive, and that one of them
// is present when required is set. A whitespace-only name is errs.ErrInvalidName.
func (r Ref) Validate(required bool) error {
	if r.blank {
		return errs.Newf(errs.ErrInvalidName, "parameter %s must not be blank", r.NameParam)
	}
	if r.Name != "" && r.ID != "" {
		return errs.Newf(errs.ErrAmbiguousIdentifier, "parameters %s and %s are mutually exclusive", r.NameParam, r.IDParam)
	}
	if required && !r.Given() {
		return errs.Newf(errs.ErrAmbiguousIdentifier, "one of %s or %s is required", r.NameParam, r.IDParam)
	}
	return nil
}

// String renders the reference for messages.
func (r Ref) String() string {
	if r.ID != "" {
		return fmt.Sprintf("id %q", r.ID)
	}
	return fmt.Sprintf("name %q", r.Name)
}

// Scope narrows a name lookup to a parent, e.g. a protection domain.
type Scope struct {
	ID string
}

// Lookup describes how to find one kind of resource.
type Lookup[T any] struct {
	// Kind is used in messages, e.g. "storage pool".
	Kind string
	// ByID returns the resource or an error marked errs.ErrNotFound.
	ByID func(ctx context.Context, id string) (*T, error)
	// ByName returns every resource with the given name.
	ByName func(ctx context.Context, name string) ([]T, error)
	// ScopeOf returns the parent id of a candidate. Nil when the kind has no parent.
	ScopeOf func(T) string
	// ScopeParam names the parameters that disambiguate, for error hints.
	ScopeParam string
}

// Locate returns the resource ref points to, or nil when it does not exist.
// Absence is not an error: callers branch on it to create, modify or do nothing.
func Locate[T any](ctx context.Context, l Lookup[T], ref Ref, scope *Scope) (*T, error) {
	if err := ref.Validate(true); err != nil {
		return nil, err
	}

	if ref.ID != "" {
		item, err := l.ByID(ctx, ref.ID)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "get %s %s", l.Kind, ref)
		}
		if item != nil && scope != nil && scope.ID != "" && l.ScopeOf != nil && l.ScopeOf(*item) != scope.ID {
			return nil, nil
		}
		return item, nil
	}

	name := strings.TrimSpace(ref.Name)
	matches, err := l.ByName(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s %s", l.Kind, ref)
	}

	if scope != nil && scope.ID != "" && l.ScopeOf != nil {
		narrowed := matches[:0:0]
		for _, m := range matches {
			if l.ScopeOf(m) == scope.ID {
				narrowed = append(narrowed, m)
			}
		}
		matches = narrowed
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	}

	err = errs.Newf(errs.ErrAmbiguousResource, "%d %ss match name %q", len(matches), l.Kind, name)
	if l.ScopeParam != "" {
		if scope != nil && scope.ID != "" {
			return nil, err
		}
		return nil, errs.WithHint(err, "specify "+l.ScopeParam)
	}
	return nil, err
}

// Require is Locate that treats absence as errs.ErrNotFound.
func Require[T any](ctx context.Context, l Lookup[T], ref Ref, scope *Scope) (*T, error) {
	item, err := Locate(ctx, l, ref, scope)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errs.Newf(errs.ErrNotFound, "%s with %s not found", l.Kind, ref)
	}
	return item, nil
}
