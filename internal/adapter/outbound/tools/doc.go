// Package tools provides the built-in tool catalogue and the tasks resource.
//
// Every tool owns its state (order book, task registry handle, host probe)
// and is constructed explicitly; nothing here reads process-wide globals.
package tools
