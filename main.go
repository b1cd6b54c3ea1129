package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	box "github.com/Delta456/box-cli-maker/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jessevdk/go-flags"

	"github.com/statica-dev/statica/pkg/clip"
	"github.com/statica-dev/statica/pkg/handler"
	"github.com/statica-dev/statica/pkg/logger"
	"github.com/statica-dev/statica/pkg/netutil"
	"github.com/statica-dev/statica/pkg/shutdown"
	"github.com/statica-dev/statica/pkg/tlsutil"
	"github.com/statica-dev/statica/pkg/webinit"
)

type options struct {
	Port             int    `short:"p" long:"port" required:"true" description:"Port number to serve on (1-65535)"`
	Dir              string `short:"d" long:"dir" required:"true" description:"Directory to serve static files from"`
	Init             bool   `long:"init" description:"Create starter web files (index.html, style.css, main.js) in the directory"`
	Test             bool   `long:"test" description:"Enable self-test endpoint at /self-test"`
	Config           string `short:"c" long:"config" value-name:"FILE" description:"Path to configuration file (serve.json, now.json, or package.json)"`
	SslCert          string `long:"ssl-cert" value-name:"FILE" description:"SSL/TLS certificate (PEM or PKCS12/PFX format)"`
	SslKey           string `long:"ssl-key" value-name:"FILE" description:"Private key file (required for PEM certificates)"`
	SslPass          string `long:"ssl-pass" value-name:"FILE" description:"File containing the certificate passphrase"`
	Cors             bool   `short:"C" long:"cors" description:"Enable permissive CORS headers"`
	Single           bool   `short:"s" long:"single" description:"Single Page Application mode - serve index.html for all not-found routes"`
	NoCompression    bool   `short:"u" long:"no-compression" description:"Disable gzip compression"`
	Symlinks         bool   `short:"S" long:"symlinks" description:"Follow symbolic links instead of showing 404 errors"`
	NoEtag           bool   `long:"no-etag" description:"Send Last-Modified instead of ETag"`
	NoRequestLogging bool   `short:"L" long:"no-request-logging" description:"Disable HTTP request log lines"`
	NoTimestamps     bool   `short:"T" long:"no-timestamps" description:"Disable timestamps in log messages"`
	NoClipboard      bool   `short:"n" long:"no-clipboard" description:"Don't copy the server URL to the clipboard"`
	NoPortSwitching  bool   `long:"no-port-switching" description:"Fail if the port is unavailable instead of auto-switching"`
}

const (
	exitFatal = 1
	exitUsage = 2
)

func main() {
	var opts options

	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(exitUsage)
	}

	if opts.Port < 1 || opts.Port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid port %d: must be between 1 and 65535\n", opts.Port)
		os.Exit(exitUsage)
	}

	log := logger.New(
		logger.WithRequestLogging(!opts.NoRequestLogging),
		logger.WithTimestamps(!opts.NoTimestamps),
	)
	log.Info("Starting %s v%s", handler.ServerName, handler.Version)

	serveDir, err := filepath.Abs(opts.Dir)
	if err == nil {
		_, err = os.Stat(serveDir)
	}
	if err != nil {
		log.Error("Unknown path: %s", opts.Dir)
		os.Exit(exitFatal)
	}

	if opts.Init {
		created, err := webinit.Scaffold(serveDir)
		if err != nil {
			log.Error("Init failed: %v", err)
			os.Exit(exitFatal)
		}
		if len(created) > 0 {
			log.Info("Created files: %s", strings.Join(created, ", "))
		} else {
			log.Info("All basic web files already exist. No files created.")
		}
	} else if !webinit.HasIndex(serveDir) {
		log.Warn("index.html not found in %s. The server will run but may not serve a default page.", serveDir)
		log.Info("Tip: use --init to create basic web files (index.html, style.css, main.js).")
	}

	cfg, err := handler.LoadConfiguration(serveDir, opts.Config)
	if err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(exitFatal)
	}

	// CLI flags override the configuration file.
	cfg.Single = opts.Single
	cfg.CORS = opts.Cors
	if opts.Symlinks {
		cfg.Symlinks = true
	}
	if opts.NoEtag {
		cfg.Etag = false
	}
	if opts.NoCompression {
		cfg.Compress = false
	}

	// The TLS identity loads fully before any socket is bound; a bad
	// certificate never leaves a half-started server behind.
	identity, err := tlsutil.FromArgs(opts.SslCert, opts.SslKey, opts.SslPass)
	if err != nil {
		log.Error("SSL configuration error: %v", err)
		os.Exit(exitFatal)
	}
	var tlsConfig *tls.Config
	if identity != nil {
		tlsConfig, err = identity.ServerConfig()
		if err != nil {
			log.Error("Failed to load TLS configuration: %v", err)
			os.Exit(exitFatal)
		}
		log.Info("Loaded %s certificate from %s", identity.Format, identity.CertPath)
	}

	binding, err := netutil.ResolvePort("", opts.Port, !opts.NoPortSwitching)
	if err != nil {
		log.Error("%v", err)
		os.Exit(exitFatal)
	}
	if binding.Switched() {
		log.Warn("Port %d was already in use, switched to port %d", binding.Requested, binding.Port)
	}

	protocol := "http"
	if tlsConfig != nil {
		protocol = "https"
	}
	localURL := fmt.Sprintf("%s://localhost:%d", protocol, binding.Port)

	router := chi.NewRouter()
	router.Use(handler.RequestLogger(log))
	router.Use(middleware.SetHeader("X-Server", handler.Signature))
	router.Use(middleware.SetHeader("X-Powered-By", handler.ServerName))
	router.Use(middleware.SetHeader("X-Version", handler.Version))
	if cfg.CORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:     []string{"*"},
			AllowedMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
			AllowedHeaders:     []string{"*"},
			OptionsPassthrough: true,
		}))
	}
	if cfg.Compress {
		router.Use(handler.Compression())
	}

	if opts.Test {
		router.Method(http.MethodGet, "/self-test", handler.NewSelfTest(localURL))
		log.Info("Self-test endpoint enabled at %s/self-test", localURL)
	}

	h := handler.New(cfg, log)
	h.AttachRoutes(router)

	listener := binding.Listener
	if tlsConfig != nil {
		listener = tls.NewListener(listener, tlsConfig)
	}

	clipboard := clip.New(!opts.NoClipboard)
	if clipboard.Enabled() {
		if err := clipboard.CopyURL(localURL); err != nil {
			log.Warn("Could not copy to clipboard: %v", err)
		} else {
			log.Info("Copied %s to clipboard", localURL)
		}
	}

	printBanner(localURL, protocol, binding.Port)

	if cfg.Compress {
		log.Info("Compression: enabled")
	} else {
		log.Info("Compression: disabled (--no-compression flag)")
	}

	srv := &http.Server{
		Handler:        router,
		MaxHeaderBytes: 64 << 10,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	sup := shutdown.New(log)
	done := make(chan struct{})
	go func() {
		sup.Watch(srv)
		close(done)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("Server error: %v", err)
			os.Exit(exitFatal)
		}
		<-done
	case <-done:
	}
}

// printBanner renders the "Serving!" box with the local and network
// addresses.
func printBanner(localURL, protocol string, port int) {
	lines := []string{fmt.Sprintf("- Local:    %s", localURL)}
	for _, ip := range netutil.ExternalIPs() {
		lines = append(lines, fmt.Sprintf("- Network:  %s://%s", protocol, netutil.FormatHostPort(ip, port)))
		break // the first reachable address is enough for the banner
	}

	bx := box.New(box.Config{Px: 4, Py: 1, Type: "Round", TitlePos: "Inside"})
	bx.Println("Serving!", strings.Join(lines, "\n"))
}
