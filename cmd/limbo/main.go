// Package main is the entry point for the limbo CLI.
package main

func main() {
	Execute()
}
