package mosaic

import (
	"net/http"
	"os"

	httptrace "github.com/DataDog/dd-trace-go/contrib/net/http/v2"
)

// tracedHTTPClient wraps client's transport with dd-trace-go's outbound
// span instrumentation when DD_TRACE_ENABLED is set, spanning the HTTP
// and STAC backends' range-read and search requests. The teacher's
// go.mod already carries dd-trace-go for a serving path this core does
// not have; client-side spans on outbound requests is where that
// dependency finds a home here instead.
func tracedHTTPClient(client *http.Client) *http.Client {
	if os.Getenv("DD_TRACE_ENABLED") == "" {
		return client
	}
	if client == nil {
		client = http.DefaultClient
	}
	return httptrace.WrapClient(client)
}
