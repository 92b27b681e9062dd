// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package event

// A Handler processes a decoded message. Handlers are called on the
// processing path, and must not block or allocate.
type Handler func(*View) error

// A Mux dispatches messages to handlers by exact address. The zero value is
// ready for use, but handlers should be registered before processing starts:
// a Mux is not safe for concurrent registration and dispatch.
type Mux struct {
	handlers map[string]Handler
}

// Handle registers a handler for the specified address, and returns m to
// permit chaining. Passing a nil handler removes any handler for addr.
//
// As a special case, if addr == "" the handler is called for any message
// whose address does not have a more specific handler registered.
func (m *Mux) Handle(addr string, h Handler) *Mux {
	if m.handlers == nil {
		m.handlers = make(map[string]Handler)
	}
	if h == nil {
		delete(m.handlers, addr)
	} else {
		m.handlers[addr] = h
	}
	return m
}

// Dispatch calls the handler for v, and reports whether a handler was found
// along with the error from the handler, if any.
func (m *Mux) Dispatch(v *View) (bool, error) {
	h, ok := m.handlers[string(v.Path())]
	if !ok {
		const wildcard = ""
		if h, ok = m.handlers[wildcard]; !ok {
			return false, nil
		}
	}
	return true, h(v)
}

// Drain reads and dispatches all messages currently available from r. It
// returns the number of messages that had no handler. Drain stops at the
// first error from the reader or a handler.
func (m *Mux) Drain(r *Reader) (unhandled int, _ error) {
	for {
		v, ok, err := r.Next()
		if err != nil {
			return unhandled, err
		} else if !ok {
			return unhandled, nil
		}
		found, err := m.Dispatch(v)
		if err != nil {
			return unhandled, err
		} else if !found {
			unhandled++
		}
	}
}

// OnFloat32 adapts f to a Handler for messages with type tags "f".
// Messages with other types report a *TypeError.
func OnFloat32(f func(float32) error) Handler {
	return func(v *View) error {
		if err := v.Expect("f"); err != nil {
			return err
		}
		return f(v.args[0].Float32())
	}
}

// OnFloat64 adapts f to a Handler for messages with type tags "d".
// Messages with other types report a *TypeError.
func OnFloat64(f func(float64) error) Handler {
	return func(v *View) error {
		if err := v.Expect("d"); err != nil {
			return err
		}
		return f(v.args[0].Float64())
	}
}

// OnInt32 adapts f to a Handler for messages with type tags "i".
// Messages with other types report a *TypeError.
func OnInt32(f func(int32) error) Handler {
	return func(v *View) error {
		if err := v.Expect("i"); err != nil {
			return err
		}
		return f(v.args[0].Int32())
	}
}

// OnInt64 adapts f to a Handler for messages with type tags "h".
// Messages with other types report a *TypeError.
func OnInt64(f func(int64) error) Handler {
	return func(v *View) error {
		if err := v.Expect("h"); err != nil {
			return err
		}
		return f(v.args[0].Int64())
	}
}

// OnNumber adapts f to a Handler for messages with a single numeric argument
// of any width. Messages with other types report a *TypeError.
func OnNumber(f func(float64) error) Handler {
	return func(v *View) error {
		if len(v.args) == 1 {
			if x, ok := v.args[0].Number(); ok {
				return f(x)
			}
		}
		return &TypeError{Address: string(v.path), Want: "<number>", Got: string(v.tags)}
	}
}
