// Command nanogenius is a terminal chat client for Gemini.
package main

import "github.com/diogo/nanogenius/internal/commands"

func main() {
	commands.Execute()
}
