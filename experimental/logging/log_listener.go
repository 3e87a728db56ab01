// Package logging provides a FunctionListenerFactory that writes function
// invocations to an io.Writer, intended for diagnosing guest/host call
// sequences during development.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wazevo-rt/wazevo/api"
	"github.com/wazevo-rt/wazevo/experimental"
)

// Writer is the output target for a logging listener.
type Writer interface {
	io.Writer
	io.StringWriter
}

// NewLoggingListenerFactory returns an experimental.FunctionListenerFactory
// that logs every function invocation that has a name to w.
func NewLoggingListenerFactory(w Writer) experimental.FunctionListenerFactory {
	return &loggingListenerFactory{w: w}
}

type loggingListenerFactory struct {
	w     Writer
	mu    sync.Mutex
	depth int
}

// NewListener implements experimental.FunctionListenerFactory.
func (f *loggingListenerFactory) NewListener(def api.FunctionDefinition) experimental.FunctionListener {
	name := def.DebugName()
	if name == "" {
		return nil
	}
	return &loggingListener{f: f, name: name}
}

// loggingListener implements experimental.FunctionListener, logging entrance
// and exit of each call indented by call depth.
type loggingListener struct {
	f    *loggingListenerFactory
	name string
}

// Before implements experimental.FunctionListener.
func (l *loggingListener) Before(ctx context.Context, def api.FunctionDefinition, paramValues []uint64) context.Context {
	l.f.mu.Lock()
	depth := l.f.depth
	l.f.depth++
	l.f.mu.Unlock()

	l.f.w.WriteString(strings.Repeat("\t", depth)) //nolint
	l.f.w.WriteString("--> ")                      //nolint
	l.f.w.WriteString(l.name)                       //nolint
	fmt.Fprintf(l.f.w, "%v\n", paramValues)
	return ctx
}

// After implements experimental.FunctionListener.
func (l *loggingListener) After(ctx context.Context, def api.FunctionDefinition, err error, resultValues []uint64) {
	l.f.mu.Lock()
	l.f.depth--
	depth := l.f.depth
	l.f.mu.Unlock()

	l.f.w.WriteString(strings.Repeat("\t", depth)) //nolint
	l.f.w.WriteString("<-- ")                      //nolint
	l.f.w.WriteString(l.name)                      //nolint
	if err != nil {
		fmt.Fprintf(l.f.w, " err=%v\n", err)
		return
	}
	fmt.Fprintf(l.f.w, "%v\n", resultValues)
}
