package main

import (
	"flag"

	"github.com/robotalks/vexlink/pkg/cli/sh"
	"github.com/robotalks/vexlink/pkg/env"

	_ "github.com/robotalks/vexlink/pkg/cli/cmds/vex"
)

//go-build: CGO_ENABLED=0

var flags = env.SetupFlags(flag.CommandLine)

func main() {
	sh.Main(flags)
}
