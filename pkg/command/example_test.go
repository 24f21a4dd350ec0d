package command_test

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/diagram"
)

func ExampleInterpreter_Execute() {
	store := diagram.NewStore()
	in := command.New(store, nil, command.WithLogger(log.New(io.Discard)))

	rep := in.Execute(context.Background(), "add A\nadd B\nlink 0 1 calls\ncolor 0 r\nmove 7 1 1")
	for _, d := range rep.Diagnostics() {
		fmt.Printf("line %d: %s\n", d.Line, d.Code)
	}

	fmt.Print(command.Serialize(store.Snapshot()))
	// Output:
	// line 5: NOT_FOUND
	// awi 0 A
	// move 0 0 0
	// awi 1 B
	// move 1 0 100
	// link 0 1 calls
	// color 0 #e6b8af
}
