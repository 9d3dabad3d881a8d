//go:generate mockgen -destination=mocks/mock_provisioner.go -package=mocks github.com/unixpickle/allreduce-bench/cluster Provisioner

package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// An InstanceSpec describes the machines to create for a
// job.
type InstanceSpec struct {
	Name         string
	Count        int
	Region       string
	Zone         string
	ImageID      string
	InstanceType string

	// PlacementGroup is empty when no placement group
	// was requested.
	PlacementGroup string
}

// An Instance is a machine created by a Provisioner.
type Instance struct {
	ID   string
	Addr string
	User string
}

// A Provisioner creates machines and runs commands on
// them.
type Provisioner interface {
	// Create creates up to spec.Count instances. It may
	// return fewer instances than requested.
	Create(ctx context.Context, spec InstanceSpec) ([]*Instance, error)

	// AwaitReady blocks until every instance accepts
	// commands, or until ctx is done.
	AwaitReady(ctx context.Context, instances []*Instance) error

	// Exec runs a command on an instance. When sync is
	// false, the command keeps running after Exec
	// returns.
	Exec(ctx context.Context, inst *Instance, cmd Command, sync bool) error

	// Upload copies a local file to an instance and
	// returns the remote path.
	Upload(ctx context.Context, inst *Instance, path string) (string, error)
}

// RemoteLauncher creates jobs on machines obtained from a
// Provisioner.
type RemoteLauncher struct {
	Provisioner Provisioner

	Region       string
	Zone         string
	InstanceType string

	// Images maps an OS family and region to an image.
	// If nil, DefaultImages is used.
	Images ImageTable

	// OSFamily selects the row of Images.
	OSFamily string

	// ImageID overrides the image lookup.
	ImageID string
}

// MakeJob provisions size instances and waits for them
// to be ready.
func (r *RemoteLauncher) MakeJob(ctx context.Context, name string, size int,
	opts JobOptions) (*Job, error) {
	spec, err := r.instanceSpec(name, size, opts)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{
		"job":   name,
		"size":  size,
		"zone":  spec.Zone,
		"image": spec.ImageID,
	})
	if size <= 0 {
		return nil, &ProvisioningError{Job: name, Requested: size,
			Err: errors.New("no tasks requested")}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.readyTimeout())
	defer cancel()

	logger.Info("creating instances")
	instances, err := r.Provisioner.Create(ctx, spec)
	if err != nil {
		return nil, &ProvisioningError{Job: name, Requested: size, Available: len(instances),
			Err: errors.Wrap(err, "create instances")}
	}
	if len(instances) < size {
		return nil, &ProvisioningError{Job: name, Requested: size, Available: len(instances)}
	}
	instances = instances[:size]

	logger.Info("waiting for instances")
	if err := r.Provisioner.AwaitReady(ctx, instances); err != nil {
		if ctx.Err() != nil {
			err = errors.Wrapf(err, "not ready after %v", opts.readyTimeout())
		}
		return nil, &ProvisioningError{Job: name, Requested: size, Available: len(instances),
			Err: err}
	}

	job := &Job{Name: name}
	var instructions strings.Builder
	for i, inst := range instances {
		job.Tasks = append(job.Tasks, &remoteTask{
			name: fmt.Sprintf("%s-%d", name, i),
			inst: inst,
			prov: r.Provisioner,
		})
		fmt.Fprintf(&instructions, "  task %d: ssh %s\n", i, sshTarget(inst))
	}
	job.instructions = "Connect to the tasks with:\n" + instructions.String()
	logger.Info("instances ready")
	return job, nil
}

func (r *RemoteLauncher) instanceSpec(name string, size int, opts JobOptions) (InstanceSpec, error) {
	if r.Region == "" {
		return InstanceSpec{}, &ConfigError{Field: "region", Reason: "no region set"}
	}
	zone := r.Zone
	if !strings.HasPrefix(zone, r.Region) {
		return InstanceSpec{}, &ConfigError{
			Field:  "zone",
			Reason: fmt.Sprintf("zone %q is not in region %q", zone, r.Region),
		}
	}
	image := r.ImageID
	if image != "" {
		log.WithField("image", image).Warn("overriding image table")
	} else {
		table := r.Images
		if table == nil {
			table = DefaultImages
		}
		var err error
		image, err = table.Lookup(r.OSFamily, r.Region)
		if err != nil {
			return InstanceSpec{}, err
		}
	}
	spec := InstanceSpec{
		Name:         name,
		Count:        size,
		Region:       r.Region,
		Zone:         zone,
		ImageID:      image,
		InstanceType: r.InstanceType,
	}
	if opts.Placement {
		spec.PlacementGroup = name
	}
	return spec, nil
}

type remoteTask struct {
	name string
	inst *Instance
	prov Provisioner
}

func (r *remoteTask) Name() string {
	return r.name
}

func (r *remoteTask) Addr() string {
	return r.inst.Addr
}

func (r *remoteTask) Run(ctx context.Context, cmd Command, sync bool) error {
	return errors.Wrapf(r.prov.Exec(ctx, r.inst, cmd, sync), "run on %s", r.name)
}

func (r *remoteTask) Upload(ctx context.Context, path string) (string, error) {
	remote, err := r.prov.Upload(ctx, r.inst, path)
	if err != nil {
		return "", errors.Wrapf(err, "upload to %s", r.name)
	}
	return remote, nil
}

func sshTarget(inst *Instance) string {
	if inst.User == "" {
		return inst.Addr
	}
	return inst.User + "@" + inst.Addr
}
