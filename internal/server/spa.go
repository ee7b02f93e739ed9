package server

import (
	"bytes"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Response headers describing how a page path was resolved.
const (
	HeaderRouteName   = "X-Route-Name"
	HeaderRouteParams = "X-Route-Params"
)

const clientTag = `<script type="module" src="/__dev/client.js"></script>`

// spa serves assets by file extension and every other path as a page
// resolved through the route table. Unmatched pages get the shell with 404
// so the client can render its own not-found view.
func (s *Server) spa() http.Handler {
	files := http.FileServerFS(s.assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasFileExtension(r.URL.Path) {
			files.ServeHTTP(w, r)
			return
		}

		m, ok := s.opts.Routes.Resolve(r.URL.EscapedPath())
		if !ok {
			s.collector.RecordUnmatched(r.URL.Path)
			s.logger.Debug().Str("path", r.URL.Path).Msg("no route matched")
			s.serveIndex(w, http.StatusNotFound)
			return
		}

		s.collector.RecordRouteHit(m.Entry.Name, m.Entry.Pattern)

		if m.Entry.IsRedirect() {
			target := m.Entry.Redirect
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		w.Header().Set(HeaderRouteName, m.Entry.Name)
		if len(m.Params) > 0 {
			q := url.Values{}
			for k, v := range m.Params {
				q.Set(k, v)
			}
			w.Header().Set(HeaderRouteParams, q.Encode())
		}
		s.serveIndex(w, http.StatusOK)
	})
}

func (s *Server) serveIndex(w http.ResponseWriter, status int) {
	page, err := fs.ReadFile(s.assets, "index.html")
	if err != nil {
		s.logger.Warn().Err(err).Msg("read index.html")
		page, err = fs.ReadFile(distFS, "dist/index.html")
		if err != nil {
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}
	}
	page = injectClient(page)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(page)
}

func injectClient(page []byte) []byte {
	if bytes.Contains(page, []byte("/__dev/client.js")) {
		return page
	}
	if i := bytes.Index(page, []byte("</head>")); i >= 0 {
		out := make([]byte, 0, len(page)+len(clientTag))
		out = append(out, page[:i]...)
		out = append(out, clientTag...)
		return append(out, page[i:]...)
	}
	return append(page, clientTag...)
}

func hasFileExtension(p string) bool {
	return strings.Contains(path.Base(p), ".")
}
