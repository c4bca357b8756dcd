package server

import (
	"context"
	"net/http"

	"github.com/soyeahso/agentcanvas/internal/gateway"
	"github.com/soyeahso/agentcanvas/internal/runlog"
)

type runsResult struct {
	Runs []runlog.Run `json:"runs"`
}

func (s *Server) handleTileRuns(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveTile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.runs == nil {
		sendJSON(w, http.StatusOK, runsResult{Runs: []runlog.Run{}})
		return
	}
	runs, err := s.runs.List(r.Context(), res.ProjectID, res.TileID, historyLimit(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, runsResult{Runs: runs})
}

// recordRun logs a send. The message already reached the gateway, so a
// failure here is only logged.
func (s *Server) recordRun(ctx context.Context, run runlog.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Record(ctx, run); err != nil {
		s.log.Warn().Err(err).Str("runId", run.RunID).Msg("run not recorded")
	}
}

// trackRun stores the terminal state of a chat run seen on the gateway
// connection.
func (s *Server) trackRun(ev gateway.Event) {
	if s.runs == nil {
		return
	}
	ce, ok := gateway.DecodeChatEvent(ev)
	if !ok || ce.RunID == "" {
		return
	}
	switch ce.State {
	case "final", "aborted", "error":
	default:
		return
	}
	if err := s.runs.SetStatus(context.Background(), ce.RunID, ce.State); err != nil {
		s.log.Warn().Err(err).Str("runId", ce.RunID).Msg("run status not updated")
	}
}

// forgetRuns drops the recorded runs of a tile, or of a whole project when
// tileID is empty.
func (s *Server) forgetRuns(projectID, tileID string) {
	if s.runs == nil {
		return
	}
	ctx := context.Background()
	var err error
	if tileID == "" {
		_, err = s.runs.DeleteProject(ctx, projectID)
	} else {
		_, err = s.runs.DeleteTile(ctx, projectID, tileID)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("projectId", projectID).Msg("runs not removed")
	}
}
