// Command myclaw runs the coding agent: a one-shot "run" command, an
// interactive "chat" REPL, and a handful of environment-inspection
// commands (config, doctor, init), all sharing the same runtime wiring.
package main

func main() {
	Execute()
}
