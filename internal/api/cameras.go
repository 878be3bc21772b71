package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camsync/internal/api/models"
	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/metrics"
	"github.com/smazurov/camsync/internal/snapshot"
)

var contentTypes = map[snapshot.Format]string{
	snapshot.JPEG: "image/jpeg",
	snapshot.PNG:  "image/png",
	snapshot.BMP:  "image/bmp",
	snapshot.TIFF: "image/tiff",
}

// registerCameraRoutes registers the array status and per-camera endpoints.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Array Status",
		Description: "Camera count, resolution, encoding, trigger mode and distributed properties of the running array",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		dec := s.acq.Decoder()
		return &models.StatusResponse{
			Body: models.StatusData{
				Status:   s.acq.Session().Status(),
				Round:    s.acq.Round(),
				FPS:      s.acq.FPS(),
				Threaded: s.acq.Threaded(),
				Decoder:  dec.Backend(),
				Order:    dec.Order().String(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "Cameras in logical channel order with their delivery statistics",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraListResponse, error) {
		infos := s.acq.Session().Cameras()
		stats := metrics.GetAllChannelMetrics()
		cameras := make([]models.CameraData, 0, len(infos))
		for ch, info := range infos {
			cam := models.CameraData{
				Channel:    ch,
				Serial:     info.Serial,
				Model:      info.Model,
				Vendor:     info.Vendor,
				Sensor:     info.Sensor,
				Resolution: info.Resolution,
				Firmware:   info.Firmware,
			}
			if slot, err := s.acq.Slot(ch); err == nil {
				cam.Slot = slot.Name()
				cam.Drops = slot.Drops()
				if f := slot.Latest(); f != nil {
					cam.LastRound = f.Round
				}
			}
			if m := stats[ch]; m != nil {
				cam.FPS = m.FPS
				cam.RetrieveTimeouts = m.RetrieveTimeouts
				cam.TriggerFailures = m.TriggerFailures
				cam.TemperatureC = m.TemperatureC
			}
			cameras = append(cameras, cam)
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: cameras, Count: len(cameras)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-properties",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{channel}/properties",
		Summary:     "Camera Properties",
		Description: "Current absolute values of every present, readable property",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(_ context.Context, input *models.ChannelInput) (*models.PropertiesResponse, error) {
		readings, err := s.acq.Session().ReadProperties(input.Channel)
		if err != nil {
			return nil, s.mapArrayError(err)
		}
		return &models.PropertiesResponse{
			Body: models.PropertiesData{Channel: input.Channel, Properties: readings},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-metadata",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{channel}/metadata",
		Summary:     "Frame Metadata",
		Description: "Embedded metadata of the latest published frame",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.ChannelInput) (*models.MetadataResponse, error) {
		f, err := s.acq.Image(input.Channel)
		if err != nil {
			return nil, huma.Error404NotFound(err.Error())
		}
		md, err := s.acq.Session().DescribeMetadata(input.Channel, f.Metadata)
		if err != nil {
			return nil, s.mapArrayError(err)
		}
		return &models.MetadataResponse{
			Body: models.MetadataData{FrameMetadata: md, Round: f.Round},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-modes",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{channel}/modes",
		Summary:     "Video Modes",
		Description: "Standard video modes and frame rates the camera supports",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(_ context.Context, input *models.ChannelInput) (*models.ModesResponse, error) {
		modes, err := s.acq.Session().VideoModes(input.Channel)
		if err != nil {
			return nil, s.mapArrayError(err)
		}
		out := make([]models.ModeData, 0, len(modes))
		for _, m := range modes {
			md := models.ModeData{Encoding: m.Mode.Encoding.String()}
			if !m.Mode.IsFormat7() {
				md.Resolution = fmt.Sprintf("%dx%d", m.Mode.Width, m.Mode.Height)
			}
			for _, r := range m.Rates {
				md.Rates = append(md.Rates, r.Hz())
			}
			out = append(out, md)
		}
		return &models.ModesResponse{
			Body: models.ModesData{Channel: input.Channel, Modes: out},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-frame",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{channel}/frame",
		Summary:     "Latest Frame",
		Description: "Latest decoded frame of a channel encoded as an image",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 500},
	}, func(_ context.Context, input *models.FrameInput) (*models.FrameResponse, error) {
		format, err := snapshot.ParseFormat(input.Format)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		f, err := s.acq.Image(input.Channel)
		if err != nil {
			return nil, huma.Error404NotFound(err.Error())
		}
		var buf bytes.Buffer
		if err := snapshot.Encode(&buf, f.Image.Std(s.acq.Decoder().Order()), format, 0); err != nil {
			return nil, huma.Error500InternalServerError("encode frame", err)
		}
		return &models.FrameResponse{
			ContentType: contentTypes[format],
			Round:       strconv.FormatUint(f.Round, 10),
			Body:        buf.Bytes(),
		}, nil
	})
}

// mapArrayError converts camera array errors to HTTP errors.
func (s *Server) mapArrayError(err error) error {
	var arrayErr *camarray.ArrayError
	if errors.As(err, &arrayErr) {
		switch arrayErr.Code {
		case camarray.ErrCodeInvalidIndex:
			return huma.Error404NotFound(arrayErr.Message, err)
		case camarray.ErrCodeSessionClosed:
			return huma.Error503ServiceUnavailable(arrayErr.Message, err)
		}
	}
	s.logger.Warn("Camera request failed", "error", err)
	return huma.Error500InternalServerError("camera request failed", err)
}
