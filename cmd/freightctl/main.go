// Command freightctl operates a local OptiFreight settlement ledger.
package main

func main() {
	Execute()
}
