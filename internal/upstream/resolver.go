package upstream

import (
	"errors"
	"net/http"

	"github.com/rb3ckers/dualwrite/internal/config"
)

// ErrNoPrimaryPeer is fatal for the request it occurs on: the caller must
// answer the client with a server error and must not retry.
var ErrNoPrimaryPeer = errors.New("no primary upstream peer configured")

// Resolver maps a request to its upstream peers. The static resolver ignores
// the request entirely, but the signature keeps the hot path honest: peer
// selection happens per request, synchronously, without I/O.
type Resolver interface {
	Primary(req *http.Request) (Peer, error)
	Shadow() (Peer, bool)
}

type StaticResolver struct {
	primary Peer
	shadow  Peer
}

// NewStaticResolver parses the configured primary and shadow targets. An
// empty shadow target is allowed and disables replication; a missing or
// unparseable primary is a configuration error.
func NewStaticResolver(cfg *config.Config) (*StaticResolver, error) {
	r := &StaticResolver{}

	if cfg.PrimaryTarget != "" {
		primary, err := ParsePeer(cfg.PrimaryTarget)
		if err != nil {
			return nil, err
		}

		r.primary = primary
	}

	if cfg.ShadowTarget != "" {
		shadow, err := ParsePeer(cfg.ShadowTarget)
		if err != nil {
			return nil, err
		}

		r.shadow = shadow
	}

	return r, nil
}

func (r *StaticResolver) Primary(_ *http.Request) (Peer, error) {
	if r.primary.IsZero() {
		return Peer{}, ErrNoPrimaryPeer
	}

	return r.primary, nil
}

func (r *StaticResolver) Shadow() (Peer, bool) {
	return r.shadow, !r.shadow.IsZero()
}
