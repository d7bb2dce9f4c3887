package proxy

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rb3ckers/dualwrite/internal/config"
	"github.com/rb3ckers/dualwrite/internal/filter"
	"github.com/rb3ckers/dualwrite/internal/shadow"
	"github.com/rb3ckers/dualwrite/internal/upstream"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"
)

// Proxy is the host engine: it owns the listen sockets and drives the
// dual-write filter through its hooks for every inbound request.
type Proxy struct {
	cfg        *config.Config
	resolver   *upstream.StaticResolver
	dispatcher *shadow.Dispatcher
	filter     *filter.Filter

	server       *http.Server
	statusServer *http.Server
}

func NewProxy(cfg *config.Config) (*Proxy, error) {
	resolver, err := upstream.NewStaticResolver(cfg)
	if err != nil {
		return nil, err
	}

	shadowPeer, _ := resolver.Shadow()
	dispatcher := shadow.NewDispatcher(shadowPeer, cfg)

	return &Proxy{
		cfg:        cfg,
		resolver:   resolver,
		dispatcher: dispatcher,
		filter:     filter.New(resolver, dispatcher, cfg.ResponseTag),
	}, nil
}

// Start brings up the dispatcher workers and the HTTP listeners, then
// returns. Serving continues in the background until Stop.
func (p *Proxy) Start(ctx context.Context) error {
	p.dispatcher.Start()

	proxyMux := http.NewServeMux()
	proxyMux.HandleFunc("/", ReverseProxyHandler(p.filter))

	var statusMux *http.ServeMux

	if p.cfg.StatusListenAddress != "" {
		statusMux = http.NewServeMux()
	} else {
		statusMux = proxyMux
	}

	statusHandler, err := p.protectedStatusHandler()
	if err != nil {
		return err
	}

	statusMux.HandleFunc("/"+p.cfg.StatusEndpoint, statusHandler)
	statusMux.Handle("/metrics", promhttp.Handler())

	listener, err := net.Listen("tcp", p.cfg.ListenAddress)
	if err != nil {
		return err
	}

	if p.cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, p.cfg.MaxConnections)
	}

	p.server = &http.Server{Handler: proxyMux}

	go func() {
		if err := p.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Proxy server stopped")
		}
	}()

	log.Info().Str("listen", p.cfg.ListenAddress).Msg("Dual-write proxy started")

	if p.cfg.StatusListenAddress != "" {
		p.statusServer = &http.Server{Addr: p.cfg.StatusListenAddress, Handler: statusMux}

		go func() {
			if err := p.statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
	}

	return nil
}

func (p *Proxy) Stop() error {
	if p.statusServer != nil {
		if err := p.statusServer.Shutdown(context.Background()); err != nil {
			return err
		}
	}

	if p.server != nil {
		if err := p.server.Shutdown(context.Background()); err != nil {
			return err
		}
	}

	p.dispatcher.Stop()

	return nil
}

func (p *Proxy) protectedStatusHandler() (http.HandlerFunc, error) {
	handler := StatusHandler(p.resolver, p.dispatcher)

	if p.cfg.PasswordFile != "" {
		username, password, err := parseUsernamePassword(p.cfg.PasswordFile)
		if err != nil {
			return nil, err
		}

		return BasicAuth(handler, username, password, "Please provide username and password to view proxy status"), nil
	}

	if p.cfg.Username != "" || p.cfg.Password != "" {
		return BasicAuth(handler, p.cfg.Username, p.cfg.Password, "Please provide username and password to view proxy status"), nil
	}

	return handler, nil
}
