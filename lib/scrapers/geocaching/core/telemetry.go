package core

import (
	"github.com/xificurk/pyggs/lib/restyutil"
)

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput routes the raw HTTP traffic of clients created
// afterwards to out. Call before NewClient.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
