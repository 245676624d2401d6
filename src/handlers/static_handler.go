// backend/src/handlers/static_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/username/aptledger/backend/src/logger"
	"github.com/username/aptledger/backend/src/utils"
)

// NewStaticHandler serves files from dir for GET and HEAD requests. Any path
// with a dot-prefixed segment (such as .env) is reported as not found.
func NewStaticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			utils.SendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		if hasHiddenSegment(r.URL.Path) {
			logger.FromContext(r.Context()).Warn("Refusing to serve hidden path", "path", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func hasHiddenSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
