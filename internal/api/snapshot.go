package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camsync/internal/api/models"
)

// registerSnapshotRoutes registers the "save current frame" endpoint.
func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "save-snapshot",
		Method:      http.MethodPost,
		Path:        "/api/snapshot",
		Summary:     "Save Snapshot",
		Description: "Write the latest frame of every channel to the snapshot directory as image-<round>_cam-<channel>.<ext>",
		Tags:        []string{"snapshot"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(_ context.Context, _ *struct{}) (*models.SnapshotResponse, error) {
		if s.options.Snapshots == nil {
			return nil, huma.Error503ServiceUnavailable("snapshots are disabled")
		}
		round := s.acq.Round()
		paths, err := s.options.Snapshots.Save(s.acq)
		if err != nil && len(paths) == 0 {
			return nil, huma.Error500InternalServerError("snapshot failed", err)
		}

		resp := &models.SnapshotResponse{
			Body: models.SnapshotData{Round: round, Paths: paths},
		}
		if err != nil {
			resp.Body.Errors = splitJoined(err)
		}
		return resp, nil
	})
}

// splitJoined lists the messages of an errors.Join result.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
