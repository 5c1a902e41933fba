package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/sim"
)

func pipelineConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Name = "pipeline"
	cfg.D1, cfg.D2, cfg.Beta = 0.5, 0.5, 1.0
	cfg.L, cfg.N = 10, 16
	cfg.TStart, cfg.TEnd, cfg.Dt = 0, 10, 0.5
	return cfg
}

type checkpointCounter struct {
	ends []float64
}

func (c *checkpointCounter) SaveCheckpoint(_ context.Context, cp sim.Checkpoint) error {
	c.ends = append(c.ends, cp.End)
	return nil
}

var _ = Describe("Run", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with identical configurations", func() {
		It("produces identical solutions", func() {
			a, err := sim.Run(ctx, pipelineConfig(), sim.RunOptions{})
			Expect(err).NotTo(HaveOccurred())
			b, err := sim.Run(ctx, pipelineConfig(), sim.RunOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Solution.Times).To(Equal(b.Solution.Times))
			Expect(a.Solution.U).To(Equal(b.Solution.U))
			Expect(a.Solution.V).To(Equal(b.Solution.V))
			Expect(a.Table).To(Equal(b.Table))
			Expect(a.Report.Regime).To(Equal(b.Report.Regime))
		})
	})

	Context("with checkpoint segmentation", Ordered, func() {
		var (
			plain, segmented *sim.Outcome
			sink             *checkpointCounter
		)

		BeforeAll(func() {
			ctx := context.Background()
			base := pipelineConfig()
			base.TEnd, base.Dt = 100, 0.1
			base.RelTol, base.AbsTol = 1e-9, 1e-11
			base.CheckEquilibrium = false

			var err error
			plain, err = sim.Run(ctx, base, sim.RunOptions{})
			Expect(err).NotTo(HaveOccurred())

			withCheckpoints := *base
			withCheckpoints.SaveCheckpoints = true
			withCheckpoints.CheckpointInterval = 25
			sink = &checkpointCounter{}
			segmented, err = sim.Run(ctx, &withCheckpoints, sim.RunOptions{Checkpoints: sink})
			Expect(err).NotTo(HaveOccurred())
		})

		It("writes one checkpoint per segment", func() {
			Expect(sink.ends).To(Equal([]float64{25, 50, 75, 100}))
		})

		It("reports every output time exactly once", func() {
			Expect(segmented.Solution.Times).To(HaveLen(1001))
			Expect(segmented.Solution.Times).To(Equal(plain.Solution.Times))
		})

		It("does not change the trajectory", func() {
			for _, k := range []int{0, 250, 251, 500, 777, 1000} {
				u1, u2 := plain.Solution.U[k], segmented.Solution.U[k]
				v1, v2 := plain.Solution.V[k], segmented.Solution.V[k]
				for i := range u1 {
					Expect(math.Abs(u1[i]-u2[i])).To(BeNumerically("<", 1e-5), "u at output %d, point %d", k, i)
					Expect(math.Abs(v1[i]-v2[i])).To(BeNumerically("<", 1e-5), "v at output %d, point %d", k, i)
				}
			}
		})

		It("keeps the statistics in step", func() {
			Expect(segmented.Table).To(HaveLen(len(plain.Table)))
			last := len(plain.Table) - 1
			Expect(segmented.Table[last].UStd).To(BeNumerically("~", plain.Table[last].UStd, 1e-6))
		})
	})
})
