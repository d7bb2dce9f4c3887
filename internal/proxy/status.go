package proxy

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/rb3ckers/dualwrite/internal/shadow"
	"github.com/rb3ckers/dualwrite/internal/upstream"
)

// StatusHandler reports the configured peers and the shadow dispatcher's
// state as plain text, one fact per line.
func StatusHandler(resolver upstream.Resolver, dispatcher *shadow.Dispatcher) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(res, "only GET is supported", http.StatusMethodNotAllowed)
			return
		}

		primary, err := resolver.Primary(req)
		if err != nil {
			fmt.Fprintf(res, "primary: (not configured)\n")
		} else {
			fmt.Fprintf(res, "primary: %s\n", primary)
		}

		shadowPeer, ok := resolver.Shadow()
		if !ok {
			fmt.Fprintf(res, "shadow: (not configured)\n")
			return
		}

		fmt.Fprintf(res, "shadow: %s\n", shadowPeer)
		fmt.Fprintf(res, "breaker: %s\n", dispatcher.BreakerState())
		fmt.Fprintf(res, "queued: %d\n", dispatcher.QueueDepth())

		outcomes := dispatcher.Outcomes()

		classes := make([]string, 0, len(outcomes))
		for class := range outcomes {
			classes = append(classes, class)
		}

		sort.Strings(classes)

		for _, class := range classes {
			fmt.Fprintf(res, "outcome %s: %d\n", class, outcomes[class])
		}
	}
}
