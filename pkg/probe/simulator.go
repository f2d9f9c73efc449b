package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/duraprobe/internal/logger"
)

// Policy selects the file-growth pattern the simulator drives.
type Policy int

const (
	// PolicyGrow models "grow, write body, commit by updating a single
	// size header": each transaction extends the file and rewrites every
	// body page, leaving one crash window between the body barrier and
	// the header barrier.
	PolicyGrow Policy = iota

	// PolicySlots models a log-structured index-table update: the file
	// grows in fixed 16-page steps and each slot's data page and header
	// record are rewritten through a run of versions, producing many
	// independent narrow crash windows.
	PolicySlots
)

// ParsePolicy maps the CLI token to a policy. Accepted tokens are "grow"
// and "slots".
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "grow":
		return PolicyGrow, nil
	case "slots":
		return PolicySlots, nil
	default:
		return 0, configErrorf("unknown policy %q (valid: grow, slots)", name)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyGrow:
		return "grow"
	case PolicySlots:
		return "slots"
	default:
		return "unknown"
	}
}

// SimulatorConfig is the validated run configuration, constructed once from
// operator input and passed by reference. ExtendSync is applied after each
// length extension, WriteSync after each write group; keeping them separate
// lets the operator probe the extend path and the data path independently.
type SimulatorConfig struct {
	WritePath       WritePath
	Policy          Policy
	ExtendSync      BarrierList
	WriteSync       BarrierList
	Iterations      int
	Idle            time.Duration
	VersionsPerSize int
}

// Simulator drives transactions against one Handle in a fixed, repeatable
// progression so results are comparable across runs and across barrier
// configurations. It owns the handle exclusively for the run's duration.
type Simulator struct {
	cfg *SimulatorConfig
	h   *Handle
}

// NewSimulator wraps a freshly created handle. The handle's write path must
// match the configuration it was created with.
func NewSimulator(h *Handle, cfg *SimulatorConfig) *Simulator {
	return &Simulator{cfg: cfg, h: h}
}

// Run executes the configured policy to completion. The intended
// termination mechanism is a power cut partway through; a clean return
// only happens when the operator lets all iterations finish. The context
// is only consulted during the inter-transaction idle, so an interrupt
// never tears a write group.
func (s *Simulator) Run(ctx context.Context) error {
	logger.Info("starting simulation",
		"file", s.h.Path(),
		"policy", s.cfg.Policy.String(),
		"write_path", s.cfg.WritePath.String(),
		"extend_sync", s.cfg.ExtendSync.String(),
		"write_sync", s.cfg.WriteSync.String(),
		"iterations", s.cfg.Iterations)

	switch s.cfg.Policy {
	case PolicyGrow:
		return s.runGrow(ctx)
	case PolicySlots:
		return s.runSlots(ctx)
	default:
		return configErrorf("invalid policy %d", int(s.cfg.Policy))
	}
}

// runGrow is the single-header progression: transaction i grows the file
// to (10 + 10i) pages, rewrites every body page tail-first with a
// page-local counter, then commits by rewriting page 0 with the new total
// size. Body before header, a barrier list after each.
func (s *Simulator) runGrow(ctx context.Context) error {
	page := make([]byte, PageSize)

	for i := 0; i < s.cfg.Iterations; i++ {
		pageCount := int64(10 + 10*i)
		fileSize := pageCount * PageSize

		logger.Info("extending file", "iteration", i, "pages", pageCount, "bytes", fileSize)
		if err := s.h.Extend(fileSize); err != nil {
			return err
		}
		if err := s.cfg.ExtendSync.Apply(s.h); err != nil {
			return err
		}

		logger.Debug("updating data portion", "pages", pageCount-1)
		for j := int64(1); j < pageCount; j++ {
			offset := (pageCount - j) * PageSize
			fillWordPattern(page, uint64(j))
			if err := s.h.Write(offset, page); err != nil {
				return err
			}
		}
		if err := s.cfg.WriteSync.Apply(s.h); err != nil {
			return err
		}

		logger.Debug("updating header portion", "claimed_bytes", fileSize)
		fillWordPattern(page, uint64(fileSize))
		if err := s.h.Write(0, page); err != nil {
			return err
		}
		if err := s.cfg.WriteSync.Apply(s.h); err != nil {
			return err
		}

		if err := s.idle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runSlots is the multi-slot progression: each growth step reserves a
// fresh 16-page region past the header page, then rewrites every slot
// through VersionsPerSize versions. Each rewrite is data page first,
// barrier, header record second, barrier; the verifier's in-flight
// tolerance exists exactly for a crash between those two barriers.
func (s *Simulator) runSlots(ctx context.Context) error {
	page := make([]byte, PageSize)
	record := make([]byte, slotRecordSize)

	for step := 0; step < s.cfg.Iterations; step++ {
		dataOffset := int64(slotDataStart) + int64(step)*SlotCount*PageSize
		fileSize := dataOffset + SlotCount*PageSize

		logger.Info("extending file", "step", step, "bytes", fileSize, "data_offset", dataOffset)
		if err := s.h.Extend(fileSize); err != nil {
			return err
		}
		if err := s.cfg.ExtendSync.Apply(s.h); err != nil {
			return err
		}

		for slot := int64(0); slot < SlotCount; slot++ {
			for version := 1; version <= s.cfg.VersionsPerSize; version++ {
				fillPairPattern(page, uint64(slot), uint64(version))
				if err := s.h.Write(dataOffset+slot*PageSize, page); err != nil {
					return err
				}
				if err := s.cfg.WriteSync.Apply(s.h); err != nil {
					return err
				}

				rec := slotRecord{
					DataOffset: uint64(dataOffset),
					SlotIndex:  uint64(slot),
					Version:    uint64(version),
					Marker:     slotMarker,
				}
				rec.encode(record)
				if err := s.h.Write(slot*slotRecordSize, record); err != nil {
					return err
				}
				if err := s.cfg.WriteSync.Apply(s.h); err != nil {
					return err
				}

				logger.Debug("slot updated", "step", step, "slot", slot, "version", version)
				if err := s.idle(ctx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// idle paces the run so the operator has a window to cut power. It is an
// aid to the human holding the plug, not a correctness mechanism.
func (s *Simulator) idle(ctx context.Context) error {
	if s.cfg.Idle <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.Idle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("simulation interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
