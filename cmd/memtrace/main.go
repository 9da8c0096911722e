// Package main provides the memtrace command-line tool. It replays a
// recorded guest access stream through the tracing pipeline and cache
// hierarchy, standing in for the emulator that normally drives them.
package main

func main() {
	Execute()
}
