// Command allocctl runs allocations and order reconciliations against the
// configured database without going through the HTTP API.
package main

func main() {
	Execute()
}
