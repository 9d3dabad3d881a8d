package cluster

import (
	"context"
	"net"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/unixpickle/essentials"
	"golang.org/x/time/rate"
)

const (
	defaultSSHPort      = 22
	defaultPollInterval = 2 * time.Second
	defaultRemoteDir    = "/tmp"
)

// An SSHHost is one machine in a static inventory.
type SSHHost struct {
	Addr string `yaml:"addr" validate:"nonzero"`
	User string `yaml:"user"`

	// Zone, if set, restricts the host to jobs in that
	// zone.
	Zone string `yaml:"zone"`
}

// SSHConfig configures an SSHProvisioner.
type SSHConfig struct {
	Hosts   []SSHHost `yaml:"hosts"`
	Port    int       `yaml:"port"`
	KeyFile string    `yaml:"key_file"`

	// ReadyProbe is an optional command that must succeed
	// on a host before the host is considered ready.
	ReadyProbe string `yaml:"ready_probe"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// RemoteDir is where uploaded files are stored.
	RemoteDir string `yaml:"remote_dir"`
}

// SSHProvisioner is a Provisioner for machines that
// already exist and are reachable over ssh.
//
// Create hands out hosts from the inventory rather than
// starting new machines.
type SSHProvisioner struct {
	Config SSHConfig

	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewSSHProvisioner creates a provisioner for the hosts
// in cfg.
func NewSSHProvisioner(cfg SSHConfig) *SSHProvisioner {
	return &SSHProvisioner{Config: cfg, commandContext: exec.CommandContext}
}

// Create picks up to spec.Count hosts in spec.Zone.
func (s *SSHProvisioner) Create(ctx context.Context, spec InstanceSpec) ([]*Instance, error) {
	var candidates []SSHHost
	for _, host := range s.Config.Hosts {
		if host.Zone == "" || host.Zone == spec.Zone {
			candidates = append(candidates, host)
		}
	}
	if spec.PlacementGroup != "" {
		log.WithField("group", spec.PlacementGroup).Debug(
			"placement groups do not apply to a static inventory")
	}
	n := essentials.MinInt(spec.Count, len(candidates))
	instances := make([]*Instance, n)
	for i, host := range candidates[:n] {
		instances[i] = &Instance{
			ID:   spec.Name + "-" + strconv.Itoa(i),
			Addr: host.Addr,
			User: host.User,
		}
	}
	return instances, nil
}

// AwaitReady polls every instance until its ssh port
// accepts connections and the readiness probe passes.
func (s *SSHProvisioner) AwaitReady(ctx context.Context, instances []*Instance) error {
	limiter := rate.NewLimiter(rate.Every(s.pollInterval()), 1)
	pending := append([]*Instance{}, instances...)
	for len(pending) > 0 {
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "%d instances not ready", len(pending))
		}
		for i := 0; i < len(pending); i++ {
			if err := s.checkReady(ctx, pending[i]); err != nil {
				log.WithError(err).WithField("instance", pending[i].ID).Debug("instance not ready")
				continue
			}
			essentials.OrderedDelete(&pending, i)
			i--
		}
	}
	return nil
}

func (s *SSHProvisioner) checkReady(ctx context.Context, inst *Instance) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(inst.Addr, strconv.Itoa(s.port())))
	if err != nil {
		return err
	}
	conn.Close()
	if s.Config.ReadyProbe == "" {
		return nil
	}
	return s.ssh(ctx, inst, s.Config.ReadyProbe)
}

// Exec runs a command over ssh. Asynchronous commands are
// detached from the session, and their output goes to a
// log file next to the uploaded files.
func (s *SSHProvisioner) Exec(ctx context.Context, inst *Instance, cmd Command, sync bool) error {
	line := cmd.String()
	if !sync {
		logFile := path.Join(s.remoteDir(), path.Base(cmd.Program)+".log")
		if len(cmd.Env) > 0 {
			// nohup runs its first argument, so variables go
			// through env.
			args := append(append([]string{}, cmd.Env...), cmd.Program)
			line = Command{Program: "env", Args: append(args, cmd.Args...)}.String()
		}
		line = "nohup " + line + " > " + shellQuote(logFile) + " 2>&1 < /dev/null &"
	}
	return s.ssh(ctx, inst, line)
}

// Upload copies a file with scp.
func (s *SSHProvisioner) Upload(ctx context.Context, inst *Instance, localPath string) (string, error) {
	remote := path.Join(s.remoteDir(), filepath.Base(localPath))
	args := append(s.commonArgs("-P"), localPath, sshTarget(inst)+":"+remote)
	if err := s.run(ctx, "scp", args...); err != nil {
		return "", err
	}
	return remote, nil
}

func (s *SSHProvisioner) ssh(ctx context.Context, inst *Instance, line string) error {
	args := append(s.commonArgs("-p"), sshTarget(inst), line)
	return s.run(ctx, "ssh", args...)
}

func (s *SSHProvisioner) commonArgs(portFlag string) []string {
	args := []string{"-o", "BatchMode=yes", "-o", "StrictHostKeyChecking=no",
		portFlag, strconv.Itoa(s.port())}
	if s.Config.KeyFile != "" {
		args = append(args, "-i", s.Config.KeyFile)
	}
	return args
}

func (s *SSHProvisioner) run(ctx context.Context, name string, args ...string) error {
	commandContext := s.commandContext
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	out, err := commandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s: %s", name, out)
	}
	return nil
}

func (s *SSHProvisioner) port() int {
	if s.Config.Port == 0 {
		return defaultSSHPort
	}
	return s.Config.Port
}

func (s *SSHProvisioner) pollInterval() time.Duration {
	if s.Config.PollInterval <= 0 {
		return defaultPollInterval
	}
	return s.Config.PollInterval
}

func (s *SSHProvisioner) remoteDir() string {
	if s.Config.RemoteDir == "" {
		return defaultRemoteDir
	}
	return s.Config.RemoteDir
}
