// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

import "expvar"

// hostMetrics record instance activity counters.
type hostMetrics struct {
	blocksRun      expvar.Int
	runFailed      expvar.Int
	eventsSent     expvar.Int // host to plugin
	eventsDropped  expvar.Int // host to plugin, buffer full
	eventsOut      expvar.Int // plugin to host
	loadFailed     expvar.Int
	negotiateFail  expvar.Int
	instanceActive expvar.Int // gauge

	emap *expvar.Map
}

var metrics = newHostMetrics()

func newHostMetrics() *hostMetrics {
	hm := &hostMetrics{emap: new(expvar.Map)}
	hm.emap.Set("blocks_run", &hm.blocksRun)
	hm.emap.Set("run_failed", &hm.runFailed)
	hm.emap.Set("events_sent", &hm.eventsSent)
	hm.emap.Set("events_dropped", &hm.eventsDropped)
	hm.emap.Set("events_out", &hm.eventsOut)
	hm.emap.Set("load_failed", &hm.loadFailed)
	hm.emap.Set("negotiation_failed", &hm.negotiateFail)
	hm.emap.Set("instances_active", &hm.instanceActive)
	return hm
}
