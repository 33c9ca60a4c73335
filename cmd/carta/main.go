// carta - workload documentation from tagged cloud resources.
// Discover. Resolve. Document.
package main

func main() {
	Execute()
}
