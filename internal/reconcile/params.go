package reconcile

import (
	"context"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// State is the requested existence of a resource.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Absent reports whether deletion was requested. The zero value means present.
func (s State) Absent() bool {
	return s == StateAbsent
}

// Rename compares a requested new name with the current one. It returns the trimmed
// name and whether a rename is needed. A nil request means no rename.
func Rename(requested *string, current string) (string, bool, error) {
	if requested == nil {
		return "", false, nil
	}
	name := strings.TrimSpace(*requested)
	if name == "" {
		return "", false, errs.Newf(errs.ErrInvalidName, "new name must not be empty")
	}
	if name == current {
		return name, false, nil
	}
	return name, true, nil
}

// Related fetches a record that only enriches details, such as the pool a volume
// lives in. An empty id or a record that no longer exists yields nil. Every other
// failure is returned.
func Related[T any](ctx context.Context, get func(context.Context, string) (*T, error), kind, id string) (*T, error) {
	if id == "" {
		return nil, nil
	}
	item, err := get(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s %s", kind, id)
	}
	return item, nil
}

var validate = newValidator()

// newValidator reports fields by their yaml names so errors match the parameters users wrote.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateParams checks struct tags on module parameters.
func ValidateParams(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.Mark(err, errs.ErrInvalidParameter)
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return errs.Newf(errs.ErrInvalidParameter, "parameter %s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return errs.Newf(errs.ErrInvalidParameter, "parameter %s must satisfy %s", fe.Field(), fe.Tag())
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
