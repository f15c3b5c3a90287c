package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/loopfwd/loopfwd/internal/proxy"
	"github.com/loopfwd/loopfwd/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		port = pflag.Int("port", 8080, "TCP port to listen on")

		acceptThreads  = pflag.Int("accept-threads", runtime.GOMAXPROCS(0), "Number of independent accept-worker event loops")
		acceptCapacity = pflag.Int("accept-capacity", 4096, "Per-worker session pool size")

		nameCache     = pflag.Int("name-cache", 1024, "Per-worker DNS name-cache capacity (0 disables)")
		cacheLifetime = pflag.Duration("cache-lifetime", 5*time.Minute, "TTL for cached names")

		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Accepted but not applied: outbound DNS lookup and TCP connect have no timeout")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Accepted but not applied: connection setup has no timeout")
		tcpKeepAlive       = pflag.Duration("tcp-keepalive", 45*time.Second, "TCP keepalive idle time on accepted connections (0 disables)")

		debugListen = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
		daemonize   = pflag.Bool("daemonize", false, "Detach from the controlling terminal")
		verbose     = pflag.Bool("verbose", false, "Enable per-connection error logging")
	)

	// Accepted for CLI compatibility; the accept-workers are the only
	// worker threads, so the value is not used.
	pflag.Int("worker-threads", runtime.GOMAXPROCS(0), "Worker thread count (accepted but unused: accept-workers are the only worker threads)")

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *daemonize {
		if err := daemonizeSelf(); err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
	}

	if *port <= 0 || *port > 65535 {
		return fmt.Errorf("invalid --port %d", *port)
	}

	cfg := proxy.Config{
		Port:               *port,
		AcceptCapacity:     *acceptCapacity,
		NameCacheCapacity:  *nameCache,
		CacheLifetime:      *cacheLifetime,
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		TCPKeepAlive:       *tcpKeepAlive,
		Verbose:            *verbose,
	}

	listenFDs, threads, err := openWorkerListeners(cfg, *acceptThreads)
	if err != nil {
		return fmt.Errorf("listen :%d: %w", cfg.Port, err)
	}

	workers := make([]*server.Worker, threads)
	totalBytes := 0
	for i := 0; i < threads; i++ {
		fd := listenFDs[i%len(listenFDs)]
		w, err := server.New(i, cfg, fd)
		if err != nil {
			return err
		}
		workers[i] = w
		totalBytes += w.PoolBytes()
	}

	log.Printf("listening on :%d with %d accept-worker(s), %d sessions/worker (%d KiB/worker, %d KiB total)",
		cfg.Port, threads, cfg.AcceptCapacity, workers[0].PoolBytes()/1024, totalBytes/1024)

	g, ctx := errgroup.WithContext(context.Background())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		debugLn, err := net.Listen("tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Printf("debug listening on %s", *debugListen)
	}

	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	err = g.Wait()

	log.Print("shutting down")
	return err
}

// openWorkerListeners opens one SO_REUSEPORT listening socket per
// requested thread so the kernel load-balances accepts across
// workers (spec §5). If the platform rejects SO_REUSEPORT, it falls
// back to original_source's single-acceptor behavior: one shared
// listener and a single thread, whatever --accept-threads asked for.
func openWorkerListeners(cfg proxy.Config, threads int) (fds []int, actualThreads int, err error) {
	if threads < 1 {
		threads = 1
	}
	if threads == 1 {
		fd, err := proxy.ListenTCP(cfg.Port, false)
		if err != nil {
			return nil, 0, err
		}
		return []int{fd}, 1, nil
	}

	fds = make([]int, 0, threads)
	for i := 0; i < threads; i++ {
		fd, err := proxy.ListenTCP(cfg.Port, true)
		if err != nil {
			for _, f := range fds {
				unix.Close(f)
			}
			if i == 0 {
				fd, err := proxy.ListenTCP(cfg.Port, false)
				if err != nil {
					return nil, 0, err
				}
				return []int{fd}, 1, nil
			}
			return nil, 0, err
		}
		fds = append(fds, fd)
	}
	return fds, threads, nil
}
