// Package server implements the preview mode: a static file server over
// the build output with file watching, debounced rebuilds, and
// websocket-driven browser reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	osexec "os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkarlsen/inkwell/internal/site"
)

var (
	rebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_rebuilds_total",
		Help: "Completed preview rebuilds.",
	})
	rebuildFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_rebuild_failures_total",
		Help: "Preview rebuilds that failed and kept stale output.",
	})
	reloadClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_reload_clients",
		Help: "Currently connected live-reload clients.",
	})
)

const livereloadJS = `
<script>
(function() {
    var ws = new WebSocket('ws://' + location.host + '/__livereload');
    ws.onmessage = function(event) {
        if (event.data === 'reload') {
            location.reload();
        }
    };
    ws.onclose = function() {
        setTimeout(function() { location.reload(); }, 1000);
    };
})();
</script>
`

// Options configures the preview server.
type Options struct {
	Root      string
	OutputDir string
	Drafts    bool
	NoExec    bool
	Sandbox   string
	Interface string
	Port      int
	Open      bool
}

// Run builds the site once, then serves it with live rebuild until ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	listener, err := listen(opts.Interface, opts.Port)
	if err != nil {
		return err
	}
	baseURL := fmt.Sprintf("http://%s", listener.Addr())

	slog.Info("Building site")
	if err := rebuild(ctx, opts, baseURL); err != nil {
		listener.Close()
		return err
	}

	hub := NewHub()
	mux := http.NewServeMux()
	mux.Handle("/__livereload", hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", &fileHandler{outputDir: opts.OutputDir})

	watcher, err := NewWatcher(opts.Root)
	if err != nil {
		listener.Close()
		return err
	}

	rebuildDone := make(chan struct{})
	go func() {
		defer close(rebuildDone)
		rebuildLoop(ctx, watcher.Trigger, hub, func(ctx context.Context) error {
			return rebuild(ctx, opts, baseURL)
		})
	}()

	srv := &http.Server{Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	slog.Info("Serving site", "url", baseURL)
	fmt.Printf("Serving at %s\n", baseURL)

	if opts.Open {
		if err := openBrowser(baseURL); err != nil {
			slog.Warn("Could not open browser", "error", err)
		}
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		watcher.Close()
		<-rebuildDone
		return err
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Shutdown incomplete", "error", err)
	}

	watcher.Close()
	<-rebuildDone
	return nil
}

// listen binds the requested address, falling back to an ephemeral port
// when the requested one is taken.
func listen(iface string, port int) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", iface, port)
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, nil
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		slog.Warn("Port in use, picking a random available port", "port", port)
		return net.Listen("tcp", fmt.Sprintf("%s:0", iface))
	}
	return nil, err
}

// rebuildLoop is the single rebuild consumer: at most one build runs at a
// time, and changes arriving mid-build coalesce into one queued trigger.
// A failed build keeps the previous output in place and skips the reload
// broadcast.
func rebuildLoop(ctx context.Context, trigger <-chan struct{}, hub *Hub, build func(context.Context) error) {
	for range trigger {
		slog.Info("Change detected, rebuilding")
		if err := build(ctx); err != nil {
			rebuildFailures.Inc()
			slog.Error("Rebuild failed, keeping previous output", "error", err)
			continue
		}
		rebuildsTotal.Inc()
		slog.Info("Rebuilt successfully")
		hub.Broadcast(ctx)
	}
}

// rebuild loads and builds a fresh Site against the preview base URL.
func rebuild(ctx context.Context, opts Options, baseURL string) error {
	s, err := site.Load(opts.Root, opts.OutputDir, opts.Drafts)
	if err != nil {
		return err
	}
	s.NoExec = opts.NoExec
	s.Sandbox = opts.Sandbox
	s.SetBaseURL(baseURL)
	return s.Build(ctx)
}

// fileHandler serves the build output with directory index resolution,
// traversal protection, livereload injection, and a custom 404 page.
type fileHandler struct {
	outputDir string
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filePath, ok := resolveServePath(h.outputDir, r.URL.Path)
	if !ok {
		h.serveNotFound(w)
		return
	}

	if strings.HasSuffix(filePath, ".html") {
		data, err := os.ReadFile(filePath)
		if err != nil {
			http.Error(w, "Read error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(injectLivereload(string(data))))
		return
	}

	http.ServeFile(w, r, filePath)
}

func (h *fileHandler) serveNotFound(w http.ResponseWriter) {
	notFound := filepath.Join(h.outputDir, "404.html")
	if data, err := os.ReadFile(notFound); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(injectLivereload(string(data))))
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// resolveServePath maps a request path to a file inside outputDir,
// rejecting anything that would escape it.
func resolveServePath(outputDir, requestPath string) (string, bool) {
	if requestPath == "/" {
		return serveCandidate(filepath.Join(outputDir, "index.html"))
	}

	stripped := strings.TrimPrefix(requestPath, "/")
	for _, seg := range strings.Split(stripped, "/") {
		if seg == ".." || seg == "." {
			return "", false
		}
	}

	candidate := filepath.Join(outputDir, filepath.FromSlash(stripped))

	// The segment check catches literal traversal; canonicalizing
	// existing paths also catches symlink escapes.
	if _, err := os.Lstat(candidate); err == nil {
		canonical, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			return "", false
		}
		canonicalRoot, err := filepath.EvalSymlinks(outputDir)
		if err != nil {
			return "", false
		}
		if canonical != canonicalRoot && !strings.HasPrefix(canonical, canonicalRoot+string(filepath.Separator)) {
			return "", false
		}
	}

	if info, err := os.Stat(candidate); err == nil {
		if info.IsDir() {
			return serveCandidate(filepath.Join(candidate, "index.html"))
		}
		return candidate, true
	}
	return serveCandidate(filepath.Join(candidate, "index.html"))
}

func serveCandidate(path string) (string, bool) {
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// injectLivereload splices the reload script before the closing body tag,
// or appends it when the page has none.
func injectLivereload(html string) string {
	if pos := strings.LastIndex(html, "</body>"); pos >= 0 {
		return html[:pos] + livereloadJS + html[pos:]
	}
	return html + livereloadJS
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return osexec.Command("open", url).Start()
	case "windows":
		return osexec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return osexec.Command("xdg-open", url).Start()
	}
}
