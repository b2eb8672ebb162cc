package config

import (
	"fmt"
	"time"

	"github.com/zkstage/coordinator/internal/workerpool"
	"github.com/zkstage/coordinator/pkg/types"
)

// WorkerPoolConfig translates the config file's worker entries into a
// workerpool.Config, splitting endpoints into the General/Snark kind
// buckets workerpool.NewPool expects.
func (c Config) WorkerPoolConfig() (workerpool.Config, error) {
	cfg := workerpool.Config{
		ProbeTO:    durationOrZero(c.WorkerProbeTO),
		StaleAfter: durationOrZero(c.WorkerStaleAge),
	}
	for _, w := range c.Workers {
		var prover types.ProverKind
		switch w.Prover {
		case "v1", "":
			prover = types.ProverV1
		case "v2":
			prover = types.ProverV2
		default:
			return workerpool.Config{}, fmt.Errorf("config: unknown prover %q for worker %s", w.Prover, w.Address)
		}
		endpoint := workerpool.Endpoint{Address: w.Address, Prover: prover}
		switch w.Kind {
		case "general", "":
			cfg.General = append(cfg.General, endpoint)
			if w.ProveCap > cfg.ProveCap {
				cfg.ProveCap = w.ProveCap
			}
		case "snark":
			cfg.Snark = append(cfg.Snark, endpoint)
		default:
			return workerpool.Config{}, fmt.Errorf("config: unknown worker kind %q for %s", w.Kind, w.Address)
		}
	}
	return cfg, nil
}

func durationOrZero(d Duration) time.Duration { return time.Duration(d) }
