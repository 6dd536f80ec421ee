package main

import (
	"fmt"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/game"
)

type circuitsCmd struct{}

func newCircuitsCmd() *circuitsCmd {
	return &circuitsCmd{}
}

func (c *circuitsCmd) Execute(args []string) error {
	for _, q := range core.AllQuestionPairs() {
		fmt.Printf("// %s\n", q)
		fmt.Print(game.Program(game.Setting(q)))
		fmt.Println()
	}
	return nil
}
