/*
Package corehttp is an embeddable HTTP/1.1 server library: non-blocking
sockets multiplexed by a platform-appropriate polling backend (epoll on
Linux, kqueue on Darwin/BSD, poll elsewhere), an async socket layer that
suspends goroutines on EAGAIN instead of blocking OS threads, an
incremental HTTP/1.1 parser and serializer, and a route-matching
connection driver.

Quick start

	package main

	import (
		"context"
		"log"

		"github.com/searchktools/corehttp"
		"github.com/searchktools/corehttp/config"
		"github.com/searchktools/corehttp/httpcore"
		"github.com/searchktools/corehttp/internal/netpoll"
		"github.com/searchktools/corehttp/router"
	)

	func main() {
		cfg := config.New()
		pool, err := netpoll.NewPool()
		if err != nil {
			log.Fatal(err)
		}
		go pool.Run(context.Background())

		srv := corehttp.NewServer(cfg, pool)
		srv.Router().Register([]httpcore.Method{httpcore.GET}, "/hello", router.HandlerFunc(
			func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
				return httpcore.NewBytesResponse(200, []byte("Hello, World!")), nil
			}))

		log.Fatal(srv.Run(context.Background()))
	}

Modules

The library is organized by the stage of a request's lifetime:

  - internal/sysfd: typed errno wrapping over golang.org/x/sys/unix
  - internal/sock: one fd per Socket, bind/listen/accept/connect, tagged Addr
  - internal/netpoll: the event pool (epoll/kqueue/poll) behind one Pool interface
  - internal/asyncio: suspend-on-EAGAIN socket wrapper, sendfile
  - httpcore: incremental request parser and response serializer
  - router: ordered, first-match-wins route table with path and header predicates
  - conn.go / server.go: the per-connection keep-alive driver and the accept/lifecycle server
  - config: server configuration, flag- and env-driven
  - pools: bounded worker fan-out and response-buffer reuse

See SPEC_FULL.md and DESIGN.md for the full design and grounding notes.
*/
package corehttp
