package main

import (
	"github.com/netobserve/linkwatch/cmd/agent"
)

func main() {
	agent.Execute()
}
