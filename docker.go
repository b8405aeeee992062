package photograde

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ExternalRequest describes one render for an external renderer.
type ExternalRequest struct {
	ImagePath  string
	Params     Params
	OutputPath string
	Format     string
	Quality    int
}

// ExternalRenderer is the capability the orchestrator needs from a
// reference-grade renderer. Probe must be cheap and bounded; Render
// returns the local path of the produced file or a structured error.
type ExternalRenderer interface {
	Probe(ctx context.Context) bool
	Render(ctx context.Context, req ExternalRequest) (string, error)
}

// ErrUnavailable reports that the external renderer cannot be reached.
var ErrUnavailable = errors.New("external renderer unavailable")

// Default per-step timeouts for the containerized renderer.
const (
	DefaultProbeTimeout  = 5 * time.Second
	DefaultCopyTimeout   = 10 * time.Second
	DefaultRenderTimeout = 60 * time.Second
)

// DockerRenderer drives a RawTherapee CLI inside a running container:
// it writes a PP3 sidecar, copies sidecar and image in, executes the
// renderer, and copies the result back out. Every step is bounded by its
// own timeout and any failure is returned, never panicked.
type DockerRenderer struct {
	Runtime   string // container runtime binary, default "docker"
	Container string // name of the running render container
	WorkDir   string // scratch dir inside the container

	ProbeTimeout  time.Duration
	CopyTimeout   time.Duration
	RenderTimeout time.Duration

	Log zerolog.Logger
}

// NewDockerRenderer returns an adapter for the named container with
// default timeouts.
func NewDockerRenderer(container string, log zerolog.Logger) *DockerRenderer {
	return &DockerRenderer{
		Runtime:       "docker",
		Container:     container,
		WorkDir:       "/tmp/photograde",
		ProbeTimeout:  DefaultProbeTimeout,
		CopyTimeout:   DefaultCopyTimeout,
		RenderTimeout: DefaultRenderTimeout,
		Log:           log,
	}
}

// Probe reports whether the container runtime answers and the named
// container is running. Both checks share the probe timeout.
func (d *DockerRenderer) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout(d.ProbeTimeout, DefaultProbeTimeout))
	defer cancel()
	if _, err := d.run(ctx, d.Runtime, "version", "--format", "{{.Server.Version}}"); err != nil {
		d.Log.Debug().Err(err).Msg("container runtime not reachable")
		return false
	}
	out, err := d.run(ctx, d.Runtime, "inspect", "-f", "{{.State.Running}}", d.Container)
	if err != nil {
		d.Log.Debug().Err(err).Str("container", d.Container).Msg("render container not found")
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// Render performs the copy-in, exec, copy-out sequence and returns the
// local output path.
func (d *DockerRenderer) Render(ctx context.Context, req ExternalRequest) (string, error) {
	tmp, err := os.MkdirTemp("", "photograde-*")
	if err != nil {
		return "", fmt.Errorf("sidecar scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	sidecar := filepath.Join(tmp, "grade.pp3")
	if err := os.WriteFile(sidecar, Sidecar(req.Params), 0o644); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}

	work := d.WorkDir
	inImage := work + "/input" + filepath.Ext(req.ImagePath)
	inProfile := work + "/grade.pp3"
	outImage := work + "/output." + formatExt(req.Format)

	copyCtx, cancel := context.WithTimeout(ctx, d.timeout(d.CopyTimeout, DefaultCopyTimeout))
	defer cancel()
	if _, err := d.run(copyCtx, d.Runtime, "exec", d.Container, "mkdir", "-p", work); err != nil {
		return "", fmt.Errorf("prepare container workdir: %w", err)
	}
	if _, err := d.run(copyCtx, d.Runtime, "cp", req.ImagePath, d.Container+":"+inImage); err != nil {
		return "", fmt.Errorf("copy image in: %w", err)
	}
	if _, err := d.run(copyCtx, d.Runtime, "cp", sidecar, d.Container+":"+inProfile); err != nil {
		return "", fmt.Errorf("copy sidecar in: %w", err)
	}

	renderCtx, cancel := context.WithTimeout(ctx, d.timeout(d.RenderTimeout, DefaultRenderTimeout))
	defer cancel()
	args := renderArgs(d.Container, inImage, inProfile, outImage, req.Format, req.Quality)
	if out, err := d.run(renderCtx, d.Runtime, args...); err != nil {
		return "", fmt.Errorf("render exec: %w (%s)", err, firstLine(out))
	}

	outCtx, cancel := context.WithTimeout(ctx, d.timeout(d.CopyTimeout, DefaultCopyTimeout))
	defer cancel()
	if _, err := d.run(outCtx, d.Runtime, "cp", d.Container+":"+outImage, req.OutputPath); err != nil {
		return "", fmt.Errorf("copy result out: %w", err)
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return "", fmt.Errorf("rendered output missing: %w", err)
	}
	if info.Size() == 0 {
		return "", errors.New("rendered output empty")
	}
	return req.OutputPath, nil
}

// renderArgs builds the container exec command line for the renderer.
func renderArgs(container, image, profile, output, format string, quality int) []string {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	args := []string{"exec", container, "rawtherapee-cli", "-Y", "-o", output, "-p", profile}
	if normalizeFormat(format) == "png" {
		args = append(args, "-n")
	} else {
		args = append(args, fmt.Sprintf("-j%d", quality))
	}
	return append(args, "-c", image)
}

func (d *DockerRenderer) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return buf.Bytes(), fmt.Errorf("%s %s: %w", name, args[0], ctx.Err())
		}
		return buf.Bytes(), fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return buf.Bytes(), nil
}

func (d *DockerRenderer) timeout(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
