package main

import (
	"context"

	"github.com/xificurk/pyggs/cmd/pyggs/commands"
	"github.com/xificurk/pyggs/lib/osutil"
	"github.com/xificurk/pyggs/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "pyggs")
	telemetry.InitSlog(true)
	commands.ExecuteContext(osutil.SignalContext())
}
