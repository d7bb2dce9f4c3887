package proxy

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// BasicAuth wraps a handler requiring HTTP basic auth for it using the given
// username and password and the specified realm, which shouldn't contain
// quotes. Comparison is constant-time on both fields.
func BasicAuth(handler http.HandlerFunc, username, password, realm string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()

		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 || subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			log.Debug().Str("remote", r.RemoteAddr).Msg("Unauthorized status request")

			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n")) //nolint:errcheck

			return
		}

		handler(w, r)
	}
}

// parseUsernamePassword reads a "username:password" pair from the given file.
func parseUsernamePassword(passwordFile string) (string, string, error) {
	data, err := os.ReadFile(passwordFile)
	if err != nil {
		return "", "", fmt.Errorf("failed to load password file: %w", err)
	}

	split := strings.SplitN(strings.TrimSpace(string(data)), ":", 2) //nolint:gomnd
	if len(split) != 2 {                                             //nolint:gomnd
		return "", "", fmt.Errorf("failed to parse username/password. Expected username/password separated by ':'")
	}

	return split[0], split[1], nil
}
