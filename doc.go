// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package spa defines the contract between a real-time audio host and
// plugins that are built independently and loaded at run time.
//
// # Ports
//
// A plugin exposes its inputs and outputs as named [Port] values. The host
// does not know the concrete type of a port in advance: it looks each port up
// by name with [Plugin.Port], and calls its Accept method with a [Binder].
// The port calls back the Binder method for its own variant, so the host
// learns the variant and binds memory to the port in one step:
//
//	p, err := plugin.Port("in")
//	if err != nil {
//	   return err // *spa.PortNotFoundError
//	}
//	if err := p.Accept(binder); err != nil {
//	   return err
//	}
//
// The variants are closed: scalar inputs and outputs of a fixed numeric type,
// stereo audio inputs and outputs, the buffer size, an event input, and an
// event output. A port whose variant the host does not understand is passed
// to [Binder.BindUnknown]. Variants added after the core set are dispatched
// through extension interfaces such as [EventsOutBinder]; a host whose binder
// does not implement the extension sees BindUnknown instead, so older hosts
// continue to work with newer plugins.
//
// A host that only cares about some variants can embed a [BaseBinder] in its
// binder type and override the methods it needs.
//
// # Lifecycle
//
// A host drives each plugin instance through a fixed sequence of states:
//
//	Unloaded → Loaded → Negotiating → Allocated → Active → Running → Deactivated → Unloaded
//
// No transition may be skipped or reordered, and [Plugin.Run] is never called
// outside the Running state. Allocation happens in [Plugin.Init], after all
// ports are bound, so the plugin knows its final buffer size. [Plugin.Activate]
// and [Plugin.Run] must not block or allocate.
//
// The host package implements this sequence for a single instance.
//
// # Events
//
// An [EventsIn] port owns a ring buffer (package ring) that carries encoded
// control messages (package event) from the host to the plugin. The host
// claims the writing end once during negotiation; the plugin reads from the
// other end inside Run. When the buffer is full, the host drops the message.
//
// # Entry Point
//
// A plugin library built with -buildmode=plugin exports a function named by
// [EntrySymbol] with the type [EntryFunc]. The host calls it with index 0 to
// obtain the [Descriptor] for the library's single plugin.
package spa
