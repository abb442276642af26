// Package network loads and saves the combined, packed network blob spec
// §4.2/§4.3 describe: a value network section followed by a policy network
// section, each independently aligned and size-checked.
package network

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/corvidchess/corvid/policynet"
	"github.com/corvidchess/corvid/valuenet"
)

// Shape describes the dimensions needed to load a blob for one game: the
// value network's input/hidden widths and the policy network's input
// width plus board geometry.
type Shape struct {
	ValueInput  int
	ValueHidden int

	PolicyInput        int
	PolicyNumSquares   int
	PolicySpecialSlots int
}

// Net bundles the two loaded networks a search needs.
type Net struct {
	Value  *valuenet.Net
	Policy *policynet.Net
}

// Load reads a combined blob from path: valuenet.Net's packed bytes
// immediately followed by policynet.Net's. The two sections are read from
// independent byte ranges carved out up front, then decoded concurrently
// with errgroup — real concurrency here, not busywork, since each section
// is an entirely independent, possibly multi-megabyte decode with its own
// alignment padding to verify.
func Load(path string, shape Shape) (*Net, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "network: read blob")
	}

	valueSize := valuenet.New(shape.ValueInput, shape.ValueHidden).ByteSize()
	policySize := policynet.New(shape.PolicyInput, shape.PolicyNumSquares, shape.PolicySpecialSlots).ByteSize()
	want := valueSize + policySize
	if int64(len(raw)) != want {
		return nil, errors.Errorf("network: blob is %d bytes, want %d", len(raw), want)
	}

	valueSection := raw[:valueSize]
	policySection := raw[valueSize:]

	var value *valuenet.Net
	var policy *policynet.Net

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		v, err := valuenet.Load(bytes.NewReader(valueSection), shape.ValueInput, shape.ValueHidden)
		if err != nil {
			return errors.WithMessage(err, "network: value section")
		}
		value = v
		return nil
	})
	g.Go(func() error {
		p, err := policynet.Load(bytes.NewReader(policySection), shape.PolicyInput, shape.PolicyNumSquares, shape.PolicySpecialSlots)
		if err != nil {
			return errors.WithMessage(err, "network: policy section")
		}
		policy = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	klog.V(1).Infof("network: loaded %s (%d bytes: %d value, %d policy)", path, len(raw), valueSize, policySize)
	return &Net{Value: value, Policy: policy}, nil
}

// Save writes a combined blob in the layout Load expects.
func Save(path string, n *Net) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithMessage(err, "network: create blob")
	}
	defer f.Close()
	return WriteTo(f, n)
}

// WriteTo writes the combined blob to an arbitrary writer; Save uses it to
// write to a file.
func WriteTo(w io.Writer, n *Net) error {
	if err := n.Value.Save(w); err != nil {
		return errors.WithMessage(err, "network: write value section")
	}
	if err := n.Policy.Save(w); err != nil {
		return errors.WithMessage(err, "network: write policy section")
	}
	return nil
}
