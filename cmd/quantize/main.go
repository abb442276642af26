// Command quantize reads a float32 training checkpoint (as cmd/train
// writes) and packs it into the fixed-point blob network.Load reads at
// engine startup (spec.md §6).
package main

import (
	"flag"
	"os"

	"k8s.io/klog/v2"

	"github.com/corvidchess/corvid/checkpoint"
	"github.com/corvidchess/corvid/network"
)

var (
	flagIn  = flag.String("in", "", "path to a gob-encoded checkpoint.Checkpoint")
	flagOut = flag.String("out", "", "path to write the packed runtime blob")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagIn == "" || *flagOut == "" {
		klog.Fatal("quantize: -in and -out are required")
	}

	in, err := os.Open(*flagIn)
	if err != nil {
		klog.Fatalf("quantize: %v", err)
	}
	ckpt, err := checkpoint.Load(in)
	in.Close()
	if err != nil {
		klog.Fatalf("quantize: %v", err)
	}

	nets := &network.Net{
		Value:  ckpt.QuantizeValue(),
		Policy: ckpt.QuantizePolicy(),
	}
	if err := network.Save(*flagOut, nets); err != nil {
		klog.Fatalf("quantize: %v", err)
	}
	klog.Infof("quantize: wrote %s", *flagOut)
}
