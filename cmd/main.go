package main

// main delegates to Execute, which sets up the Cobra command structure
// defined in root.go. The process always exits with status 0.
func main() {
	Execute()
}
