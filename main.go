package main

import "github.com/doug7410/samplepal-leads-sub001/cmd"

func main() {
	cmd.Execute()
}
