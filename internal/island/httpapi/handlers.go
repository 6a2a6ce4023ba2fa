package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/island-mesh/island/internal/auth"
	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/eventqueue"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/plugins"
	"github.com/island-mesh/island/internal/island/reporting"
)

// ReportService serves the aggregated report.
type ReportService interface {
	GetScanned(ctx context.Context) ([]reporting.ScannedMachine, error)
	GetFirstAgentTime(ctx context.Context) (time.Time, error)
	GetLastAgentDeadTime(ctx context.Context) (reporting.LastDeadTime, error)
	GetSummary(ctx context.Context) (reporting.Summary, error)
}

// ModeService reads and changes the island mode.
type ModeService interface {
	Get() models.IslandMode
	SetFromJSON(ctx context.Context, body []byte) error
}

// AgentSignals records and answers terminate signals.
type AgentSignals interface {
	TerminateAll(ctx context.Context, at time.Time) error
	ShouldAgentStop(ctx context.Context, agentID uuid.UUID) (bool, error)
}

// PBAFiles stores custom post-breach action files.
type PBAFiles interface {
	Upload(ctx context.Context, fileType, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, fileType string) (*os.File, string, error)
	Delete(ctx context.Context, fileType string) error
}

// PluginIndex serves the agent plugin repository index.
type PluginIndex interface {
	Available(ctx context.Context, forceRefresh bool) (*plugins.RepositoryIndex, error)
}

// AgentPlugins installs, removes and serves agent plugins.
type AgentPlugins interface {
	InstallArchive(ctx context.Context, archive []byte) (models.AgentPluginManifest, error)
	InstallFromRepository(ctx context.Context, pluginType, name, version string) (models.AgentPluginManifest, error)
	Uninstall(ctx context.Context, pluginType, name string) error
	GetPlugin(ctx context.Context, hostOS, pluginType, name string) (models.AgentPlugin, error)
	Manifests(ctx context.Context) (plugins.Manifests, error)
	ConfigurationSchemas(ctx context.Context) (map[models.AgentPluginType]map[string]map[string]any, error)
}

// AgentConfig reads and replaces the agent configuration.
type AgentConfig interface {
	Get(ctx context.Context) (models.AgentConfiguration, error)
	SetFromJSON(ctx context.Context, body []byte) error
}

// TokenValidator checks plaintext API tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.APIToken, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(token *auth.APIToken) (string, time.Time, error)
}

// pbaFormField is the multipart field the upload widget posts.
const pbaFormField = "filepond"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "is-up" {
		writeStatus(w, http.StatusBadRequest, "unsupported action")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]bool{"is-up": true})
}

type authRequest struct {
	Token string `json:"token"`
}

type authResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil || s.issuer == nil {
		writeStatus(w, http.StatusNotFound, "authentication is not configured")
		return
	}

	var req authRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
		writeError(w, s.logger, errors.MalformedInput("httpapi.Auth", err))
		return
	}

	token, err := s.tokens.ValidateToken(req.Token)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, "invalid token")
		return
	}
	signed, expiresAt, err := s.issuer.Issue(token)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, authResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC(),
	})
}

func (s *Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.mode.Get())
}

func (s *Server) handlePutMode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize))
	if err != nil {
		writeError(w, s.logger, errors.MalformedInput("httpapi.PutMode", err))
		return
	}
	if err := s.mode.SetFromJSON(r.Context(), body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScanned(w http.ResponseWriter, r *http.Request) {
	scanned, err := s.reports.GetScanned(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, scanned)
}

// reportTimes uses nil for times that are not known yet.
type reportTimes struct {
	FirstAgentStart *time.Time `json:"first_agent_start"`
	LastAgentStop   *time.Time `json:"last_agent_stop"`
	AgentsRunning   bool       `json:"agents_running"`
}

func (s *Server) handleTimes(w http.ResponseWriter, r *http.Request) {
	var times reportTimes

	first, err := s.reports.GetFirstAgentTime(r.Context())
	switch {
	case errors.KindOf(err) == errors.KindNotFound:
		writeJSON(w, s.logger, http.StatusOK, times)
		return
	case err != nil:
		writeError(w, s.logger, err)
		return
	}
	times.FirstAgentStart = &first

	last, err := s.reports.GetLastAgentDeadTime(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if last.Known {
		times.LastAgentStop = &last.Time
	}
	times.AgentsRunning = last.AgentsRunning
	writeJSON(w, s.logger, http.StatusOK, times)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.GetSummary(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, summary)
}

func (s *Server) handleNeedsToStop(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(r.PathValue("agent_id"))
	if err != nil {
		writeError(w, s.logger, errors.MalformedInput("httpapi.NeedsToStop", err))
		return
	}
	stop, err := s.signals.ShouldAgentStop(r.Context(), agentID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]bool{"stop_agent": stop})
}

type terminateRequest struct {
	// KillTime is a Unix timestamp in seconds. Zero means now.
	KillTime float64 `json:"kill_time"`
}

func (s *Server) handleTerminateAll(w http.ResponseWriter, r *http.Request) {
	var req terminateRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize))
	if err != nil {
		writeError(w, s.logger, errors.MalformedInput("httpapi.TerminateAll", err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, s.logger, errors.MalformedInput("httpapi.TerminateAll", err))
			return
		}
	}
	if req.KillTime < 0 {
		writeError(w, s.logger, errors.InvalidValue("httpapi.TerminateAll", "kill_time must not be negative"))
		return
	}

	at := time.Now()
	if req.KillTime > 0 {
		at = time.Unix(0, int64(req.KillTime*float64(time.Second)))
	}
	if err := s.signals.TerminateAll(r.Context(), at); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publish returns a handler that announces topic to the event queue.
func (s *Server) publish(topic eventqueue.Topic) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.events.Publish(topic, nil)
		s.logger.Info().Str("topic", string(topic)).Msg("Event published")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetPBA(w http.ResponseWriter, r *http.Request) {
	f, name, err := s.pba.Open(r.Context(), r.PathValue("file_type"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleUploadPBA(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxPBAFileSize+1<<20)
	file, header, err := r.FormFile(pbaFormField)
	if err != nil {
		writeError(w, s.logger, errors.MalformedInput("httpapi.UploadPBA", err))
		return
	}
	defer func() { _ = file.Close() }()

	name, err := s.pba.Upload(r.Context(), r.PathValue("file_type"), header.Filename, file)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(name))
}

func (s *Server) handleDeletePBA(w http.ResponseWriter, r *http.Request) {
	if err := s.pba.Delete(r.Context(), r.PathValue("file_type")); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, struct{}{})
}

func (s *Server) handlePluginIndex(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force_refresh"))
	index, err := s.plugins.Available(r.Context(), force)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, index)
}

func (s *Server) handleGetAgentConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.agentCfg.Get(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, cfg)
}

func (s *Server) handlePutAgentConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize))
	if err != nil {
		writeError(w, s.logger, errors.MalformedInput("httpapi.PutAgentConfiguration", err))
		return
	}
	if err := s.agentCfg.SetFromJSON(r.Context(), body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pluginSelector struct {
	PluginType string `json:"plugin_type"`
	Name       string `json:"name"`
	Version    string `json:"version"`
}

func decodeSelector(w http.ResponseWriter, r *http.Request, op string) (pluginSelector, error) {
	var sel pluginSelector
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sel); err != nil {
		return sel, errors.MalformedInput(op, err)
	}
	if sel.PluginType == "" || sel.Name == "" {
		return sel, errors.InvalidValue(op, "plugin_type and name are required")
	}
	return sel, nil
}

// handleInstallPlugin installs from the plugin repository when the body is a
// JSON selector and treats any other body as a plugin archive.
func (s *Server) handleInstallPlugin(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.InstallAgentPlugin"

	var (
		manifest models.AgentPluginManifest
		err      error
	)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var sel pluginSelector
		if sel, err = decodeSelector(w, r, op); err == nil {
			manifest, err = s.agentPlugins.InstallFromRepository(r.Context(), sel.PluginType, sel.Name, sel.Version)
		}
	} else {
		var archive []byte
		archive, err = io.ReadAll(http.MaxBytesReader(w, r.Body, plugins.MaxArchiveSize))
		if err != nil {
			err = errors.MalformedInput(op, err)
		} else {
			manifest, err = s.agentPlugins.InstallArchive(r.Context(), archive)
		}
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, manifest)
}

func (s *Server) handleUninstallPlugin(w http.ResponseWriter, r *http.Request) {
	sel, err := decodeSelector(w, r, "httpapi.UninstallAgentPlugin")
	if err == nil {
		err = s.agentPlugins.Uninstall(r.Context(), sel.PluginType, sel.Name)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := s.agentPlugins.GetPlugin(r.Context(), r.PathValue("host_os"), r.PathValue("plugin_type"), r.PathValue("name"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, p)
}

func (s *Server) handlePluginManifests(w http.ResponseWriter, r *http.Request) {
	manifests, err := s.agentPlugins.Manifests(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, manifests)
}

func (s *Server) handlePluginSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.agentPlugins.ConfigurationSchemas(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, schemas)
}
