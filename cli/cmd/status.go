package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/cli/render"
	"github.com/pithecene-io/mwi/runtime"
)

// StatusResponse is the response for the status command.
type StatusResponse struct {
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Healthy     bool   `json:"healthy" yaml:"healthy"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Recognition string `json:"recognition,omitempty" yaml:"recognition,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Fields implements render.Describer.
func (s StatusResponse) Fields() []render.Field {
	health := "healthy"
	if !s.Healthy {
		health = "unhealthy"
	}
	return []render.Field{
		{Label: "Endpoint", Value: s.Endpoint},
		{Label: "Health", Value: health, State: health},
		{Label: "Status", Value: s.Status},
		{Label: "Version", Value: s.Version},
		{Label: "Recognition", Value: s.Recognition},
		{Label: "Error", Value: s.Error, State: "failed"},
	}
}

// StatusCommand returns the status command.
// It checks the health endpoint and reports the service's own status.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show service status and health",
		Flags:  withFlags(ServiceFlags(), ReadOnlyFlags()),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}

	healthErr := client.Health(c.Context)
	status, statusErr := client.Status(c.Context)
	if healthErr != nil && statusErr != nil {
		return cli.Exit(fmt.Sprintf("service unreachable: %v", healthErr), runtime.ExitCodeFailure)
	}

	if c.Bool("tui") {
		if status == nil {
			return cli.Exit(fmt.Sprintf("status unavailable: %v", statusErr), runtime.ExitCodeFailure)
		}
		if err := r.RenderTUI("inspect_status", status); err != nil {
			return err
		}
	} else {
		resp := StatusResponse{Endpoint: client.BaseURL(), Healthy: healthErr == nil}
		if status != nil {
			resp.Status = status.Status
			resp.Version = status.Version
			resp.Recognition = "unavailable"
			if status.FaceRecognition.Available {
				resp.Recognition = "available"
			}
			if status.FaceRecognition.DemoMode {
				resp.Recognition += " (demo mode)"
			}
			if status.FaceRecognition.Error != nil {
				resp.Error = *status.FaceRecognition.Error
			}
		}
		if healthErr != nil {
			resp.Error = healthErr.Error()
		}
		if err := r.Render(resp); err != nil {
			return err
		}
	}

	if healthErr != nil {
		return cli.Exit("", runtime.ExitCodeFailure)
	}
	return nil
}
