// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Program so builds the gain plugin as a loadable library:
//
//	go build -buildmode=plugin -o gain.so ./plugins/gain/so
package main

import (
	"github.com/creachadair/spa"
	"github.com/creachadair/spa/plugins/gain"
)

// SpaDescriptor is the entry point resolved by hosts.
func SpaDescriptor(index uint64) spa.Descriptor { return gain.Entry(index) }

func main() {}
