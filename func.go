package wazevo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wazevo-rt/wazevo/api"
)

// Func describes a host-defined function before it is wired into a Linker, pairing a Go
// implementation with the WebAssembly signature it presents to importing modules. Functions
// exported by an already-instantiated Instance are api.Function values returned directly by
// Instance.ExportedFunction; Func only exists for the host->guest direction.
type Func struct {
	params, results []api.ValueType
	goFunc           interface{} // api.GoFunction or api.GoModuleFunction
}

// NewFunc builds a Func from fn using reflection to infer params/results, the same convention
// builder.go's HostFunctionBuilder.WithFunc documents: context.Context is an optional first
// parameter, api.Module is an optional second parameter for functions that need the calling
// module, and remaining parameters/the single result (if any) must be one of uint32, uint64,
// int32, int64, float32, float64.
func NewFunc(fn interface{}) (*Func, error) {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function: %T", fn)
	}

	in := 0
	wantsModule := false
	if rt.NumIn() > in && rt.In(in) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		in++
	}
	if rt.NumIn() > in && rt.In(in) == reflect.TypeOf((*api.Module)(nil)).Elem() {
		wantsModule = true
		in++
	}

	var params []api.ValueType
	for ; in < rt.NumIn(); in++ {
		vt, err := goKindToValueType(rt.In(in).Kind())
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", in, err)
		}
		params = append(params, vt)
	}

	var results []api.ValueType
	if rt.NumOut() > 1 {
		return nil, fmt.Errorf("at most one result is supported, got %d", rt.NumOut())
	}
	for i := 0; i < rt.NumOut(); i++ {
		vt, err := goKindToValueType(rt.Out(i).Kind())
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		results = append(results, vt)
	}

	if wantsModule {
		return &Func{params: params, results: results, goFunc: api.GoModuleFunc(reflectModuleCall(rv, params, results))}, nil
	}
	return &Func{params: params, results: results, goFunc: api.GoFunc(reflectCall(rv, params, results))}, nil
}

func goKindToValueType(k reflect.Kind) (api.ValueType, error) {
	switch k {
	case reflect.Uint32, reflect.Int32:
		return api.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return api.ValueTypeI64, nil
	case reflect.Float32:
		return api.ValueTypeF32, nil
	case reflect.Float64:
		return api.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("unsupported Go kind %s", k)
	}
}

func reflectCall(fn reflect.Value, params, results []api.ValueType) func(ctx context.Context, stack []uint64) {
	return func(ctx context.Context, stack []uint64) {
		in := buildArgs(fn.Type(), ctx, nil, params, stack)
		out := fn.Call(in)
		storeResults(results, out, stack)
	}
}

func reflectModuleCall(fn reflect.Value, params, results []api.ValueType) func(ctx context.Context, mod api.Module, stack []uint64) {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		in := buildArgs(fn.Type(), ctx, mod, params, stack)
		out := fn.Call(in)
		storeResults(results, out, stack)
	}
}

func buildArgs(rt reflect.Type, ctx context.Context, mod api.Module, params []api.ValueType, stack []uint64) []reflect.Value {
	in := make([]reflect.Value, 0, rt.NumIn())
	idx := 0
	if rt.NumIn() > idx && rt.In(idx) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		in = append(in, reflect.ValueOf(ctx))
		idx++
	}
	if mod != nil && rt.NumIn() > idx && rt.In(idx) == reflect.TypeOf((*api.Module)(nil)).Elem() {
		in = append(in, reflect.ValueOf(mod))
		idx++
	}
	for i, vt := range params {
		v := stack[i]
		var rv reflect.Value
		switch vt {
		case api.ValueTypeI32:
			rv = reflect.ValueOf(uint32(v)).Convert(rt.In(idx))
		case api.ValueTypeI64:
			rv = reflect.ValueOf(v).Convert(rt.In(idx))
		case api.ValueTypeF32:
			rv = reflect.ValueOf(api.DecodeF32(v)).Convert(rt.In(idx))
		case api.ValueTypeF64:
			rv = reflect.ValueOf(api.DecodeF64(v)).Convert(rt.In(idx))
		}
		in = append(in, rv)
		idx++
	}
	return in
}

func storeResults(results []api.ValueType, out []reflect.Value, stack []uint64) {
	for i, vt := range results {
		v := out[i]
		switch vt {
		case api.ValueTypeI32:
			if v.Kind() == reflect.Int32 {
				stack[i] = uint64(uint32(v.Int()))
			} else {
				stack[i] = uint64(uint32(v.Uint()))
			}
		case api.ValueTypeI64:
			if v.Kind() == reflect.Int64 {
				stack[i] = uint64(v.Int())
			} else {
				stack[i] = v.Uint()
			}
		case api.ValueTypeF32:
			stack[i] = api.EncodeF32(float32(v.Float()))
		case api.ValueTypeF64:
			stack[i] = api.EncodeF64(v.Float())
		}
	}
}
