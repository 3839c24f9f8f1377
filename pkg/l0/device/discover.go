package device

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/golang/glog"

	fx "github.com/robotalks/vexlink/pkg/framework"
	"github.com/robotalks/vexlink/pkg/l0/comm"
)

// Defaults for selecting the brain among enumerated devices.
const (
	DefaultVendorMarker = "VEX"
	DefaultClassTag     = "ACM"
)

// Select picks device paths from enumerated lines containing
// vendorMarker. Paths containing classTag come first, each group is in
// reverse lexical order so the most recently attached node is tried
// first.
func Select(lines []string, vendorMarker, classTag string) []string {
	var preferred, others []string
	for _, line := range lines {
		if !strings.Contains(line, vendorMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if path := fields[0]; classTag != "" && strings.Contains(path, classTag) {
			preferred = append(preferred, path)
		} else {
			others = append(others, path)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(preferred)))
	sort.Sort(sort.Reverse(sort.StringSlice(others)))
	return append(preferred, others...)
}

// Discoverer finds the device and opens it. It implements comm.Connector.
type Discoverer struct {
	Enumerator   Enumerator
	Opener       Opener
	VendorMarker string
	ClassTag     string
}

// NewDiscoverer creates a Discoverer with default selection rules.
func NewDiscoverer(enum Enumerator, opener Opener) *Discoverer {
	return &Discoverer{
		Enumerator:   enum,
		Opener:       opener,
		VendorMarker: DefaultVendorMarker,
		ClassTag:     DefaultClassTag,
	}
}

// Candidates enumerates and selects device paths.
func (d *Discoverer) Candidates(ctx context.Context) ([]string, error) {
	lines, err := d.Enumerator.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return Select(lines, d.VendorMarker, d.ClassTag), nil
}

// Connect implements comm.Connector. Candidates are tried in order until
// one opens.
func (d *Discoverer) Connect(ctx context.Context) (io.ReadWriteCloser, error) {
	paths, err := d.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, comm.ErrNoDevice
	}
	var errs fx.AggregatedError
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		link, err := d.Opener.Open(ctx, path)
		if err == nil {
			glog.Infof("opened device %s", path)
			return link, nil
		}
		glog.V(1).Infof("open %s failed: %v", path, err)
		errs.Add(err)
	}
	return nil, errs.Aggregate()
}
