package shadow

import (
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// breakerStateHandler logs breaker transitions for the shadow peer. The
// shadow peer is fixed configuration, so state changes are surfaced but the
// peer is never removed.
func breakerStateHandler() func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		switch to {
		case gobreaker.StateOpen:
			log.Warn().Str("shadow", name).Msg("Shadow upstream failing, suspending dispatch attempts")
		case gobreaker.StateHalfOpen:
			log.Info().Str("shadow", name).Msg("Probing shadow upstream")
		case gobreaker.StateClosed:
			log.Info().Str("shadow", name).Msg("Resuming dispatch to shadow upstream")
		}
	}
}
