package branchpred_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/branchpred"
)

func TestBranchPred(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "BranchPred Suite")
}

var _ = Describe("Unit", func() {
	var u *branchpred.Unit

	BeforeEach(func() {
		u = branchpred.NewUnit(branchpred.DefaultConfig())
	})

	It("defaults gshare's direction table to weakly-taken", func() {
		pred := u.Predict(0x1000, false, false)
		Expect(pred.Taken).To(BeTrue())
	})

	It("learns not-taken after enough resolved not-taken outcomes", func() {
		for i := 0; i < 8; i++ {
			u.Update(0x1000, false, 0, false, false)
		}
		pred := u.Predict(0x1000, false, false)
		Expect(pred.Taken).To(BeFalse())
	})

	It("reports a BTB miss until the target has been recorded", func() {
		pred := u.Predict(0x2000, false, false)
		Expect(pred.TargetKnown).To(BeFalse())

		u.Update(0x2000, true, 0x3000, false, false)
		pred = u.Predict(0x2000, false, false)
		Expect(pred.TargetKnown).To(BeTrue())
		Expect(pred.Target).To(Equal(uint64(0x3000)))
	})

	It("always predicts a call as taken regardless of the direction table", func() {
		pred := u.Predict(0x4000, true, false)
		Expect(pred.Taken).To(BeTrue())
	})

	It("pops the most recently pushed return address for a return", func() {
		u.PushReturn(0x5004)
		pred := u.Predict(0x6000, false, true)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeTrue())
		Expect(pred.Target).To(Equal(uint64(0x5004)))
	})

	It("falls back to an unknown-target taken prediction on an empty RAS", func() {
		pred := u.Predict(0x7000, false, true)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeFalse())
	})

	It("tracks prediction accuracy across Update calls", func() {
		u.Update(0x1000, true, 0x2000, false, false)
		u.Update(0x1000, true, 0x2000, false, false)
		stats := u.Stats()
		Expect(stats.Correct + stats.Mispredictions).To(BeNumerically(">", 0))
	})

	It("restores the RAS to a snapshot, discarding pushes made after it", func() {
		u.PushReturn(0x1004)
		sp, count := u.RASSnapshot()

		u.PushReturn(0x2004)
		u.PushReturn(0x3004)

		u.RASRestore(sp, count)

		pred := u.Predict(0x6000, false, true)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeTrue())
		Expect(pred.Target).To(Equal(uint64(0x1004)))
	})

	It("rolls back a squashed call so a later return does not see its address", func() {
		sp, count := u.RASSnapshot()
		u.PushReturn(0x9004) // speculative call, later squashed

		u.RASRestore(sp, count)

		pred := u.Predict(0x6000, false, true)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeFalse())
	})

	It("clears direction, BTB, RAS, and stats state on Reset", func() {
		u.Update(0x1000, true, 0x2000, false, false)
		u.PushReturn(0x1004)
		u.Predict(0x1000, false, false)

		u.Reset()

		Expect(u.Stats()).To(Equal(branchpred.Stats{}))
		pred := u.Predict(0x1000, false, false)
		Expect(pred.TargetKnown).To(BeFalse())
	})
})

var _ = Describe("Direction predictor families", func() {
	It("builds every configured family without panicking", func() {
		for _, family := range []branchpred.Family{
			branchpred.FamilyStatic,
			branchpred.FamilyGShare,
			branchpred.FamilyTournament,
			branchpred.FamilyPerceptron,
			branchpred.FamilyTAGE,
		} {
			cfg := branchpred.DefaultConfig()
			cfg.Family = family
			Expect(func() { branchpred.New(cfg) }).NotTo(Panic())
		}
	})

	It("always predicts not-taken for the static family", func() {
		d := branchpred.New(branchpred.Config{Family: branchpred.FamilyStatic})
		Expect(d.Predict(0x1000)).To(BeFalse())
		d.Update(0x1000, true)
		Expect(d.Predict(0x1000)).To(BeFalse())
	})
})
