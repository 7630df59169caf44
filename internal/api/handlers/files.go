package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/api/problem"
	"github.com/openatelier/server/internal/metrics"
	"github.com/openatelier/server/internal/signing"
)

// FilesHandler serves protected media gated by signed URLs. Verification is
// stateless: no database read happens on this path.
type FilesHandler struct {
	signer *signing.Signer
	root   string
	env    string
}

func NewFilesHandler(signer *signing.Signer, root, env string) *FilesHandler {
	return &FilesHandler{signer: signer, root: root, env: env}
}

// Get handles GET /files/{path}?userId=&expires=&sig=.
//
// Every rejection looks identical to the client; only internal logs
// record whether a token was expired, tampered, or malformed, so the
// response never works as an oracle.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	resourcePath := r.PathValue("path")
	userID := r.URL.Query().Get("userId")
	expiresRaw := r.URL.Query().Get("expires")
	sig := r.URL.Query().Get("sig")

	logger := zerolog.Ctx(r.Context())

	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if resourcePath == "" || userID == "" || sig == "" || err != nil {
		metrics.SignedURLVerifications.WithLabelValues("invalid").Inc()
		logger.Warn().Str("path", resourcePath).Msg("signed url rejected: malformed parameters")
		h.deny(w, r)
		return
	}

	result := h.signer.Verify(resourcePath, userID, expires, sig, time.Now())
	switch {
	case result.Expired:
		metrics.SignedURLVerifications.WithLabelValues("expired").Inc()
		logger.Warn().Str("path", resourcePath).Str("user_id", userID).Msg("signed url rejected: expired")
		h.deny(w, r)
		return
	case !result.Valid:
		metrics.SignedURLVerifications.WithLabelValues("invalid").Inc()
		logger.Warn().Str("path", resourcePath).Str("user_id", userID).Msg("signed url rejected: bad signature")
		h.deny(w, r)
		return
	}
	metrics.SignedURLVerifications.WithLabelValues("valid").Inc()

	clean := path.Clean("/" + resourcePath)
	if strings.Contains(clean, "..") {
		h.deny(w, r)
		return
	}
	full := filepath.Join(h.root, filepath.FromSlash(clean))

	file, err := os.Open(full)
	if err != nil {
		problem.Write(w, r, http.StatusNotFound, "about:blank", "Not Found", err, h.env)
		return
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		problem.Write(w, r, http.StatusNotFound, "about:blank", "Not Found", err, h.env)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// deny is the uniform rejection: same status, same body, regardless of why.
func (h *FilesHandler) deny(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusForbidden, "about:blank", "Forbidden", nil, h.env,
		problem.WithDetail("access denied"))
}
