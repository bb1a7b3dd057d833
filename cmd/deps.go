package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/backend"
	"github.com/kozaktomas/attendance/internal/camera"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/recognition"
	"github.com/kozaktomas/attendance/internal/web/handlers"
)

// newBackend creates the roster and persistence client.
func newBackend(cfg *config.Config) (*backend.Client, error) {
	client, err := backend.NewWithCapture(cfg.API.URL, cfg.API.Timeout, captureDir)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return client, nil
}

// cameraSource picks the local frame source, snapshot URL first.
func cameraSource(cfg *config.Config) (camera.Source, error) {
	switch {
	case cfg.Camera.SnapshotURL != "":
		return camera.NewSnapshotSource(cfg.Camera.SnapshotURL, cfg.API.Timeout), nil
	case cfg.Camera.FramesDir != "":
		return camera.NewDirectorySource(cfg.Camera.FramesDir), nil
	default:
		return nil, errors.New("no camera configured: set CAMERA_SNAPSHOT_URL or CAMERA_FRAMES_DIR")
	}
}

func cameraOptions(cfg *config.Config) camera.Options {
	return camera.Options{
		Frames:   cfg.Burst.Frames,
		Interval: cfg.Burst.Interval,
		MaxSize:  cfg.Burst.MaxSize,
		LockFile: cfg.Camera.LockFile,
	}
}

// sessionDeps wires the boundary clients shared by the CLI and the server.
func sessionDeps(cfg *config.Config) (handlers.RegistryDeps, error) {
	api, err := newBackend(cfg)
	if err != nil {
		return handlers.RegistryDeps{}, err
	}

	deps := handlers.RegistryDeps{
		Roster:     api,
		Recognizer: recognition.NewClient(cfg.Recognition.URL, cfg.API.Timeout),
		Persister:  api,
		NewDevice:  handlers.RemoteDevices(cfg.Burst.MaxSize),
	}

	if cfg.Camera.HasLocalSource() {
		source, err := cameraSource(cfg)
		if err != nil {
			return handlers.RegistryDeps{}, err
		}
		opts := cameraOptions(cfg)
		deps.NewDevice = func(bool) (attendance.Device, *camera.Remote) {
			return camera.New(source, opts), nil
		}
	}
	return deps, nil
}
