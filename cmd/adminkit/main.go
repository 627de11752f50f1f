// Package main is the entry point for AdminKit.
package main

func main() {
	Execute()
}
