package assemble

import (
	"context"
	"fmt"
	"path"
	"reflect"
	"runtime"
)

// Call pairs a function with positional arguments that are bound to it at
// declaration time, before the saga runs.  The zero Name derives the
// operation name from the function symbol.
type Call struct {
	Fn   any
	Args []any
	Name string
}

// Bind packages a function and its pre-bound positional arguments into a
// Call for use with Append.
func Bind(fn any, args ...any) Call {
	return Call{Fn: fn, Args: args}
}

// Operation is one saga step: an action and an optional compensation.
// Its identity is its declaration index, which governs execution order in
// orchestrator mode and compensation order in both modes.
type Operation struct {
	index        int
	name         string
	action       *boundCall
	compensation *boundCall
}

// Index returns the operation's declaration index.
func (o *Operation) Index() int {
	return o.index
}

// Name returns the operation's resolved name.
func (o *Operation) Name() string {
	return o.name
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	resultsType = reflect.TypeOf((*Results)(nil))
)

// boundCall is a function normalized at declaration time: arguments are
// already bound, and the leading context.Context and *Results parameters,
// when present, are injected at invocation.
type boundCall struct {
	fn       reflect.Value
	args     []reflect.Value
	name     string
	passCtx  bool
	passRes  bool
	errOnly  bool
	variadic bool
}

// normalizeValue converts one Append value into a boundCall.  Accepted
// forms: a bare function, a Call built by Bind, or a slice whose first
// element is the function and whose remainder are pre-bound positional
// arguments.
func normalizeValue(v any) (*boundCall, error) {
	switch arg := v.(type) {
	case nil:
		return nil, declarationFailed("operation value must not be nil")
	case Call:
		return newBoundCall(arg.Fn, arg.Args, arg.Name)
	case *Call:
		return newBoundCall(arg.Fn, arg.Args, arg.Name)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return newBoundCall(v, nil, "")
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil, declarationFailed("operation sequence must not be empty")
		}
		args := make([]any, 0, rv.Len()-1)
		for i := 1; i < rv.Len(); i++ {
			args = append(args, rv.Index(i).Interface())
		}
		return newBoundCall(rv.Index(0).Interface(), args, "")
	default:
		return nil, declarationFailed("operation value must be a function, got %T", v)
	}
}

// newBoundCall validates fn against the bound arguments and builds the
// normalized call.  All validation happens here, at declaration time, so a
// mismatch never survives into a run.
func newBoundCall(fn any, args []any, name string) (*boundCall, error) {
	if fn == nil {
		return nil, declarationFailed("operation function must not be nil")
	}
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func {
		return nil, declarationFailed("first operation value must be a function, got %T", fn)
	}

	t := fnv.Type()
	bc := &boundCall{
		fn:       fnv,
		name:     name,
		variadic: t.IsVariadic(),
	}
	if bc.name == "" {
		bc.name = functionName(fnv)
	}

	switch t.NumOut() {
	case 0:
	case 1:
		bc.errOnly = t.Out(0) == errorType
	case 2:
		if !t.Out(1).Implements(errorType) {
			return nil, declarationFailed("function %s: second return value must be an error, got %s", bc.name, t.Out(1))
		}
	default:
		return nil, declarationFailed("function %s: at most two return values are allowed, got %d", bc.name, t.NumOut())
	}

	// Leading context.Context and *Results parameters are injected by the
	// runner, not bound by the caller.
	in := 0
	if t.NumIn() > in && t.In(in) == contextType {
		bc.passCtx = true
		in++
	}
	if t.NumIn() > in && t.In(in) == resultsType {
		bc.passRes = true
		in++
	}

	remaining := t.NumIn() - in
	if bc.variadic {
		if len(args) < remaining-1 {
			return nil, declarationFailed("function %s: expects at least %d bound argument(s), got %d", bc.name, remaining-1, len(args))
		}
	} else if len(args) != remaining {
		return nil, declarationFailed("function %s: expects %d bound argument(s), got %d", bc.name, remaining, len(args))
	}

	bc.args = make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		pt := paramType(t, in+i)
		av, err := argValue(arg, pt)
		if err != nil {
			return nil, declarationFailed("function %s: argument %d: %v", bc.name, i, err)
		}
		bc.args = append(bc.args, av)
	}

	return bc, nil
}

// paramType returns the parameter type at position i, flattening the
// variadic tail to its element type.
func paramType(t reflect.Type, i int) reflect.Type {
	if t.IsVariadic() && i >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(i)
}

func argValue(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(pt), nil
		default:
			return reflect.Value{}, fmt.Errorf("cannot bind nil to parameter of type %s", pt)
		}
	}
	av := reflect.ValueOf(arg)
	if !av.Type().AssignableTo(pt) {
		return reflect.Value{}, fmt.Errorf("cannot bind %s to parameter of type %s", av.Type(), pt)
	}
	return av, nil
}

// invoke runs the bound call, injecting ctx and the shared accumulator
// where the signature asks for them.
func (bc *boundCall) invoke(ctx context.Context, results *Results) (any, error) {
	argv := make([]reflect.Value, 0, len(bc.args)+2)
	if bc.passCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		argv = append(argv, reflect.ValueOf(ctx))
	}
	if bc.passRes {
		argv = append(argv, reflect.ValueOf(results))
	}
	argv = append(argv, bc.args...)

	out := bc.fn.Call(argv)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if bc.errOnly {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		return out[0].Interface(), asError(out[1])
	}
}

func asError(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface().(error)
}

// functionName resolves a short name for a function value from its symbol,
// mirroring how the operation would be referred to in a stack trace.
func functionName(fnv reflect.Value) string {
	f := runtime.FuncForPC(fnv.Pointer())
	if f == nil {
		return "anonymous"
	}
	return path.Base(f.Name())
}
