package restyutil

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// InstrumentOutput receives a rendered copy of each HTTP exchange.
type InstrumentOutput interface {
	Write(id string, contents string)
}

// InstrumentClient dumps every request/response pair passing through the
// client to `output`, one entry per exchange, so scraper sessions can be
// replayed by eye when a parser breaks. Tracing is left to the telemetry
// middleware. A nil output makes this a no-op.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatExchange(res))
		slog.Debug(
			"dumped http exchange",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"message_id", id,
		)
		return nil
	})
}
