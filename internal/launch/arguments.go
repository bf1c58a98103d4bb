package launch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// ArgumentSpec declares one launch argument.
type ArgumentSpec struct {
	Name        string
	Default     string
	HasDefault  bool
	Description string
	Choices     []string
	// CLI marks arguments meant to be set by operators on the command line.
	CLI bool
}

type ArgOption func(*ArgumentSpec)

func WithDescription(description string) ArgOption {
	return func(s *ArgumentSpec) {
		s.Description = description
	}
}

func WithChoices(choices ...string) ArgOption {
	return func(s *ArgumentSpec) {
		s.Choices = choices
	}
}

func WithCLI() ArgOption {
	return func(s *ArgumentSpec) {
		s.CLI = true
	}
}

// Arguments holds the declared arguments of one launch entry point together
// with the values it was invoked with. Values for undeclared names are kept
// and forwarded to included entry points, the same way launch
// configurations are visible to included files.
//
// Typed getters never fail; conversion problems are collected and returned
// by Err.
type Arguments struct {
	specs  []*ArgumentSpec
	index  map[string]*ArgumentSpec
	values map[string]string
	errs   error
}

// NewArguments creates a container seeded with the given values.
func NewArguments(values map[string]string) *Arguments {
	v := make(map[string]string, len(values))
	for k, val := range values {
		v[k] = val
	}
	return &Arguments{
		index:  map[string]*ArgumentSpec{},
		values: v,
	}
}

func (a *Arguments) add(spec *ArgumentSpec, opts []ArgOption) {
	for _, opt := range opts {
		opt(spec)
	}
	if prev, ok := a.index[spec.Name]; ok {
		*prev = *spec
		return
	}
	a.specs = append(a.specs, spec)
	a.index[spec.Name] = spec
}

// Add declares an argument with a default value. Defaults may be any value
// printable with %v; booleans render as True/False.
func (a *Arguments) Add(name string, def any, opts ...ArgOption) {
	a.add(&ArgumentSpec{Name: name, Default: Format(def), HasDefault: true}, opts)
}

// AddRequired declares an argument without a default.
func (a *Arguments) AddRequired(name string, opts ...ArgOption) {
	a.add(&ArgumentSpec{Name: name}, opts)
}

// Specs returns the declarations in declaration order.
func (a *Arguments) Specs() []ArgumentSpec {
	return lo.Map(a.specs, func(s *ArgumentSpec, _ int) ArgumentSpec { return *s })
}

// Validate checks that every required argument was provided and that
// values respect declared choices.
func (a *Arguments) Validate() error {
	var errs error
	for _, spec := range a.specs {
		v, ok := a.values[spec.Name]
		if !ok && !spec.HasDefault {
			errs = multierr.Append(errs, cerrors.ErrMissingArgument.WithMessage("required launch argument %q was not provided", spec.Name))
			continue
		}
		if !ok {
			v = spec.Default
		}
		if len(spec.Choices) > 0 && !lo.Contains(spec.Choices, v) {
			errs = multierr.Append(errs, cerrors.ErrInvalidArgument.WithMessage(
				"argument %q has value %q, expected one of [%s]", spec.Name, v, strings.Join(spec.Choices, ", ")))
		}
	}
	return errs
}

// Has reports whether name was provided or has a default.
func (a *Arguments) Has(name string) bool {
	if _, ok := a.values[name]; ok {
		return true
	}
	spec, ok := a.index[name]
	return ok && spec.HasDefault
}

// String returns the provided value, the declared default, or "".
func (a *Arguments) String(name string) string {
	if v, ok := a.values[name]; ok {
		return v
	}
	if spec, ok := a.index[name]; ok {
		return spec.Default
	}
	return ""
}

// Bool reads a boolean the way launch conditions do: true/false/1/0,
// case-insensitive.
func (a *Arguments) Bool(name string) bool {
	b, err := ParseBool(a.String(name))
	if err != nil {
		a.errs = multierr.Append(a.errs, cerrors.ErrInvalidArgument.WithMessage("argument %q: %v", name, err))
	}
	return b
}

func (a *Arguments) Int(name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(a.String(name)))
	if err != nil {
		a.errs = multierr.Append(a.errs, cerrors.ErrInvalidArgument.WithMessage("argument %q is not an integer: %q", name, a.String(name)))
	}
	return v
}

func (a *Arguments) Float(name string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(a.String(name)), 64)
	if err != nil {
		a.errs = multierr.Append(a.errs, cerrors.ErrInvalidArgument.WithMessage("argument %q is not a number: %q", name, a.String(name)))
	}
	return v
}

// IsValid reports whether name holds a usable value: neither empty nor the
// literal None.
func (a *Arguments) IsValid(name string) bool {
	return IsValidValue(a.String(name))
}

// Err returns the conversion errors collected by the typed getters.
func (a *Arguments) Err() error {
	return a.errs
}

// Values returns every known value, provided or defaulted. Included entry
// points inherit this scope.
func (a *Arguments) Values() map[string]string {
	out := make(map[string]string, len(a.values)+len(a.specs))
	for _, spec := range a.specs {
		if spec.HasDefault {
			out[spec.Name] = spec.Default
		}
	}
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Declarations returns a DeclareArgument action per declared argument.
func (a *Arguments) Declarations() Actions {
	out := make(Actions, 0, len(a.specs))
	for _, spec := range a.specs {
		decl := &DeclareArgument{Name: spec.Name, Description: spec.Description, Choices: spec.Choices}
		if spec.HasDefault {
			def := spec.Default
			decl.Default = &def
		}
		out = append(out, decl)
	}
	return out
}

// ParseBool accepts true/false/1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected true, false, 1 or 0, got %q", s)
	}
}

// IsValidValue reports whether s is neither empty nor "None".
func IsValidValue(s string) bool {
	return s != "" && s != "None"
}

// Format renders a value the way it is passed on a launch command line.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Merge overlays values from the given maps, later maps winning.
func Merge(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
